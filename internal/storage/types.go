package storage

import (
	"context"
	"errors"
	"time"

	"notifymanager/internal/policy"
	"notifymanager/internal/targets"
)

var (
	ErrDisabled = errors.New("storage disabled")
	// ErrNotFound is returned by Load when nothing has been saved yet.
	ErrNotFound = errors.New("storage: document not found")
)

// DocumentVersion is stamped on every saved document.
const DocumentVersion = 1

// Document is everything that survives a restart.
type Document struct {
	Version   int                           `json:"version"`
	Templates []policy.NotificationTemplate `json:"templates"`
	Groups    []targets.Group               `json:"groups,omitempty"`
}

// Store is the persistence API used by the manager.
type Store interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
	Close() error
}

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver string

	// file, sqlite
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// redis
	Addr     string
	Password string
	DB       int
	Key      string
}
