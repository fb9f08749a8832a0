// Package storage provides the key/value medium that keeps client state
// between runs: the bearer token, the cached identity and the active company.
// Values are opaque strings; callers own their encoding.
package storage

import (
	"context"
	"net/http"
	"strings"

	"github.com/codigos/codigos/internal/common/apperrors"
)

// KV is a flat string key/value store. Implementations must be safe for
// concurrent use.
type KV interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

var (
	ErrStorage         apperrors.Error = apperrors.New("storage error").SetStatusCode(http.StatusInternalServerError)
	ErrUnknownBackend  apperrors.Error = ErrStorage.New("unknown storage backend")
	ErrUnableToRead    apperrors.Error = ErrStorage.New("unable to read state")
	ErrUnableToWrite   apperrors.Error = ErrStorage.New("unable to write state")
	ErrMissingLocation apperrors.Error = ErrStorage.New("storage location is required")
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string // file backend
	Redis   RedisOptions
}

// Open builds the backend named in opts.
func Open(opts Options) (KV, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFile(opts.Path)
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(opts.Redis)
	default:
		return nil, ErrUnknownBackend.Msg("unknown storage backend: " + opts.Backend)
	}
}
