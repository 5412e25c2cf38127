package defaults

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"tradejournal/internal/journal"
	"tradejournal/internal/models"
)

//go:embed defaults.yaml
var raw []byte

// Defaults начальные данные нового пользователя
type Defaults struct {
	Settings   Settings    `yaml:"settings"`
	SetupTypes []SetupType `yaml:"setup_types"`
	Checklists []Checklist `yaml:"checklists"`
}

type Settings struct {
	InitialBalance float64            `yaml:"initial_balance"`
	Currency       string             `yaml:"currency"`
	DateFormat     string             `yaml:"date_format"`
	Preferences    models.Preferences `yaml:"preferences"`
}

type SetupType struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Checklist struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Items       []string `yaml:"items"`
}

// Load разбирает встроенный defaults.yaml
func Load() (*Defaults, error) {
	return Parse(raw)
}

// Parse разбирает YAML с начальными данными
func Parse(data []byte) (*Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse defaults: %w", err)
	}

	for _, c := range d.Checklists {
		if !journal.ValidChecklistType(c.Type) {
			return nil, fmt.Errorf("checklist %q: unknown type %q", c.Name, c.Type)
		}

		if _, err := c.checklist(0); err != nil {
			return nil, fmt.Errorf("checklist %q: %w", c.Name, err)
		}
	}

	return &d, nil
}

// UserSettings возвращает настройки по умолчанию
func (d *Defaults) UserSettings() models.UserSettings {
	return models.UserSettings{
		InitialBalance: d.Settings.InitialBalance,
		Currency:       d.Settings.Currency,
		DateFormat:     d.Settings.DateFormat,
		Preferences:    d.Settings.Preferences,
		SchemaVersion:  models.SettingsSchemaVersion,
	}
}

// Store операции хранилища, нужные для заполнения
type Store interface {
	ListSetupTypes(ctx context.Context, userID int) ([]models.SetupType, error)
	CreateSetupType(ctx context.Context, st *models.SetupType) error
	ListChecklists(ctx context.Context, userID int) ([]models.Checklist, error)
	CreateChecklist(ctx context.Context, c *models.Checklist) error
	UpsertSettings(ctx context.Context, settings *models.UserSettings) error
}

// SeedResult что было создано
type SeedResult struct {
	SetupTypes int
	Checklists int
}

// Seed создает типы сетапов и чек-листы, если у пользователя их еще нет
func (d *Defaults) Seed(ctx context.Context, store Store, userID int) (SeedResult, error) {
	var result SeedResult

	setupTypes, err := store.ListSetupTypes(ctx, userID)
	if err != nil {
		return result, err
	}

	if len(setupTypes) == 0 {
		for _, st := range d.SetupTypes {
			description := st.Description
			item := models.SetupType{UserID: userID, Name: st.Name, Description: &description}
			if err := store.CreateSetupType(ctx, &item); err != nil {
				return result, fmt.Errorf("setup type %q: %w", st.Name, err)
			}

			result.SetupTypes++
		}
	}

	checklists, err := store.ListChecklists(ctx, userID)
	if err != nil {
		return result, err
	}

	if len(checklists) == 0 {
		for _, tpl := range d.Checklists {
			c, err := tpl.checklist(userID)
			if err != nil {
				return result, fmt.Errorf("checklist %q: %w", tpl.Name, err)
			}

			if err := store.CreateChecklist(ctx, &c); err != nil {
				return result, fmt.Errorf("checklist %q: %w", tpl.Name, err)
			}

			result.Checklists++
		}
	}

	return result, nil
}

// SeedUser заполняет данные нового пользователя, включая настройки
func (d *Defaults) SeedUser(ctx context.Context, store Store, userID int) error {
	settings := d.UserSettings()
	settings.UserID = userID

	if err := store.UpsertSettings(ctx, &settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	_, err := d.Seed(ctx, store, userID)

	return err
}

func (c Checklist) checklist(userID int) (models.Checklist, error) {
	out := models.Checklist{
		UserID:      userID,
		Name:        c.Name,
		Description: c.Description,
		Type:        c.Type,
		Items:       make([]models.ChecklistItem, 0, len(c.Items)),
	}

	for _, text := range c.Items {
		out.Items = append(out.Items, models.ChecklistItem{Text: text})
	}

	// назначает id пунктам item-1..item-n
	if err := journal.NormalizeChecklist(&out); err != nil {
		return models.Checklist{}, err
	}

	return out, nil
}
