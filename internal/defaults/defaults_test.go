package defaults

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/models"
)

type memStore struct {
	setupTypes []models.SetupType
	checklists []models.Checklist
	settings   *models.UserSettings
}

func (m *memStore) ListSetupTypes(context.Context, int) ([]models.SetupType, error) {
	return m.setupTypes, nil
}

func (m *memStore) CreateSetupType(_ context.Context, st *models.SetupType) error {
	m.setupTypes = append(m.setupTypes, *st)
	return nil
}

func (m *memStore) ListChecklists(context.Context, int) ([]models.Checklist, error) {
	return m.checklists, nil
}

func (m *memStore) CreateChecklist(_ context.Context, c *models.Checklist) error {
	m.checklists = append(m.checklists, *c)
	return nil
}

func (m *memStore) UpsertSettings(_ context.Context, s *models.UserSettings) error {
	m.settings = s
	return nil
}

func TestLoadEmbedded(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, d.SetupTypes)
	assert.NotEmpty(t, d.Checklists)

	settings := d.UserSettings()
	assert.Equal(t, "USD", settings.Currency)
	assert.Equal(t, 2, settings.Preferences.NumberPrecision)
	assert.Equal(t, "green-red", settings.Preferences.PnLColorScheme)
	assert.True(t, settings.Preferences.Notifications.Push)
}

func TestParseRejectsUnknownChecklistType(t *testing.T) {
	_, err := Parse([]byte("checklists:\n  - name: x\n    type: whenever\n"))
	assert.Error(t, err)
}

func TestSeedUserOnce(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	store := &memStore{}
	require.NoError(t, d.SeedUser(context.Background(), store, 7))

	require.NotNil(t, store.settings)
	assert.Equal(t, 7, store.settings.UserID)
	assert.Len(t, store.setupTypes, len(d.SetupTypes))
	require.Len(t, store.checklists, len(d.Checklists))

	first := store.checklists[0]
	assert.Equal(t, 7, first.UserID)
	assert.Equal(t, "item-1", first.Items[0].ID)
	assert.Zero(t, first.CompletionRate)

	result, err := d.Seed(context.Background(), store, 7)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, result)
	assert.Len(t, store.setupTypes, len(d.SetupTypes))
}
