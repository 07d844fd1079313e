package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"notifymanager/internal/policy"
	logx "notifymanager/pkg/logx"
)

// Open initializes the configured store.
// It returns ErrDisabled if storage is turned off.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, ErrDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// stamp fills the version and normalizes nil slices before a save.
func stamp(doc Document) Document {
	doc.Version = DocumentVersion
	if doc.Templates == nil {
		doc.Templates = []policy.NotificationTemplate{}
	}
	return doc
}

func encode(doc Document) ([]byte, error) {
	b, err := json.Marshal(stamp(doc))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// decode accepts documents without a version stamp as version 1.
func decode(b []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.Version > DocumentVersion {
		return Document{}, fmt.Errorf("document version %d is newer than supported %d", doc.Version, DocumentVersion)
	}
	return stamp(doc), nil
}
