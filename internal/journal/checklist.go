package journal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
)

// ErrItemNotFound - в чек-листе нет пункта с таким id
var ErrItemNotFound = errors.New("checklist item not found")

// CompletionRate возвращает 100*completed/total, округленное до 2 знаков; 0 для пустого списка
func CompletionRate(items []models.ChecklistItem) float64 {
	if len(items) == 0 {
		return 0
	}

	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
		}
	}

	rate := decimal.NewFromInt(int64(completed)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(len(items)))).
		Round(2)

	f, _ := rate.Float64()

	return f
}

// ValidChecklistType проверяет тип чек-листа
func ValidChecklistType(t string) bool {
	switch t {
	case models.ChecklistPre, models.ChecklistDuring, models.ChecklistPost, models.ChecklistRule:
		return true
	}

	return false
}

// NormalizeChecklist валидирует чек-лист, назначает id пунктам без id
// и пересчитывает процент выполнения.
func NormalizeChecklist(c *models.Checklist) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))

	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}

	if c.Type == "" {
		c.Type = models.ChecklistPre
	}

	if !ValidChecklistType(c.Type) {
		return fmt.Errorf("%w: type must be one of pre, during, post, rule", ErrValidation)
	}

	seen := make(map[string]struct{}, len(c.Items))
	for _, item := range c.Items {
		if item.ID == "" {
			continue
		}

		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("%w: duplicate checklist item id %q", ErrValidation, item.ID)
		}

		seen[item.ID] = struct{}{}
	}

	next := 1
	for i := range c.Items {
		c.Items[i].Text = strings.TrimSpace(c.Items[i].Text)
		if c.Items[i].Text == "" {
			return fmt.Errorf("%w: checklist item %d has empty text", ErrValidation, i+1)
		}

		if c.Items[i].ID != "" {
			continue
		}

		// Подбираем свободный id вида "item-N"
		for {
			id := "item-" + strconv.Itoa(next)
			next++

			if _, ok := seen[id]; !ok {
				c.Items[i].ID = id
				seen[id] = struct{}{}

				break
			}
		}
	}

	if c.Items == nil {
		c.Items = []models.ChecklistItem{}
	}

	c.CompletionRate = CompletionRate(c.Items)

	return nil
}

// ToggleItem переключает пункт и возвращает новый процент выполнения
func ToggleItem(c *models.Checklist, itemID string) error {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Completed = !c.Items[i].Completed
			c.CompletionRate = CompletionRate(c.Items)

			return nil
		}
	}

	return ErrItemNotFound
}

// NormalizeDate берет первые 10 символов и проверяет формат YYYY-MM-DD.
// Повторное применение дает тот же результат.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}

	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return "", fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrValidation, s)
	}

	return s, nil
}
