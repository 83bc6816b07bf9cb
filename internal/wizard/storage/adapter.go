package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/metrics"
	"social-support-wizard/internal/common/validation"
	"social-support-wizard/internal/models"
)

// Adapter adds JSON encoding and the date reviver on top of a KV.
type Adapter struct {
	kv     KV
	logger logger.Logger
}

func NewAdapter(kv KV, log logger.Logger) *Adapter {
	return &Adapter{kv: kv, logger: log}
}

// Get decodes the value stored under key. It returns false when the key is
// absent or unreadable. Strings shaped like YYYY-MM-DD inside untyped
// values come back as models.Date.
func Get[T any](ctx context.Context, a *Adapter, key string) (*T, bool) {
	raw, ok := a.read(ctx, key)
	if !ok {
		return nil, false
	}
	return decode[T](a, key, raw)
}

// GetChecked is Get with a structural check of the stored document first.
// A document failing the check reads as absent.
func GetChecked[T any](ctx context.Context, a *Adapter, key string, schema *validation.Schema) (*T, bool) {
	raw, ok := a.read(ctx, key)
	if !ok {
		return nil, false
	}
	if result := schema.ValidateJSON(raw); !result.Valid {
		a.fail("get", key, fmt.Errorf("stored value has unexpected shape: %v", result.GetErrorMessages()))
		return nil, false
	}
	return decode[T](a, key, raw)
}

func decode[T any](a *Adapter, key string, raw []byte) (*T, bool) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		a.fail("get", key, err)
		return nil, false
	}

	switch v := any(&out).(type) {
	case *map[string]interface{}:
		revive(*v)
	case *[]interface{}:
		revive(*v)
	case *interface{}:
		*v = revive(*v)
	}
	return &out, true
}

func (a *Adapter) read(ctx context.Context, key string) ([]byte, bool) {
	raw, err := a.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		a.fail("get", key, err)
		return nil, false
	}
	return raw, true
}

// Set encodes value under key. Failures are logged and dropped.
func (a *Adapter) Set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		a.fail("set", key, err)
		return
	}
	if err := a.kv.Set(ctx, key, raw); err != nil {
		a.fail("set", key, err)
	}
}

func (a *Adapter) Remove(ctx context.Context, key string) {
	if err := a.kv.Delete(ctx, key); err != nil {
		a.fail("remove", key, err)
	}
}

func (a *Adapter) fail(op, key string, err error) {
	metrics.PersistenceFailures.WithLabelValues(op).Inc()
	a.logger.Warn("persistence operation failed", map[string]interface{}{
		"op":    op,
		"key":   key,
		"error": err,
	})
}

func revive(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if models.DatePattern.MatchString(val) {
			if d, err := models.ParseDate(val); err == nil {
				return d
			}
		}
		return val
	case map[string]interface{}:
		for k, child := range val {
			val[k] = revive(child)
		}
		return val
	case []interface{}:
		for i, child := range val {
			val[i] = revive(child)
		}
		return val
	default:
		return v
	}
}
