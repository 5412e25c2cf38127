package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store хранилище байтовых значений с TTL
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix удаляет все ключи с префиксом
	DeletePrefix(ctx context.Context, prefix string) error
}

// GetJSON читает и декодирует значение. Битое значение считается промахом.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	b, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal(b, v); err != nil {
		return false, nil
	}

	return true, nil
}

// SetJSON кодирует и сохраняет значение
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return s.Set(ctx, key, b, ttl)
}
