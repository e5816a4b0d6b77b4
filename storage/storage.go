// Package storage is the durable key-value store behind the widget's
// persisted state. Values are JSON documents.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned by Get when a key has never been written
var ErrNotFound = errors.New("storage: key not found")

// Keys persisted by the widget
const (
	KeyClocks      = "clocks"
	KeyTheme       = "theme"
	KeyDisplayMode = "displayMode"
)

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Store is a process-wide key-value store that survives restarts
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Options selects and configures a backend
type Options struct {
	Backend     string
	Path        string
	RedisURL    string
	RedisPrefix string
}

// Open creates the store described by opts
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return OpenFile(opts.Path)
	case BackendRedis:
		return OpenRedis(ctx, opts.RedisURL, opts.RedisPrefix, logger)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend '%s'", opts.Backend)
	}
}

// GetJSON decodes key into dest. found is false when the key is missing.
func GetJSON(ctx context.Context, s Store, key string, dest any) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return true, fmt.Errorf("failed to decode '%s': %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode '%s': %w", key, err)
	}
	return s.Set(ctx, key, data)
}
