package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"YuutaiSentinel/internal/model"
)

// MonthKeyPrefix namespaces per-month candidate lists.
const MonthKeyPrefix = "yuutai.month."

// MonthCache stores one value per rights month under its own key.
type MonthCache[T any] struct {
	kv KV
}

// NewMonthCache wraps kv.
func NewMonthCache[T any](kv KV) *MonthCache[T] {
	return &MonthCache[T]{kv: kv}
}

// Key returns the storage key for month, e.g. yuutai.month.march.
func Key(month time.Month) string {
	return MonthKeyPrefix + model.MonthKey(month)
}

// Get returns the cached value and whether it existed.
func (c *MonthCache[T]) Get(month time.Month) (T, bool, error) {
	var v T
	raw, ok, err := c.kv.Get(Key(month))
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", Key(month), err)
	}
	return v, true, nil
}

func (c *MonthCache[T]) Set(month time.Month, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", Key(month), err)
	}
	return c.kv.Set(Key(month), raw)
}

func (c *MonthCache[T]) Delete(month time.Month) error {
	return c.kv.Delete(Key(month))
}
