// Package storage persists the user document: saved notification templates
// and device groups.
//
// Drivers:
//   - file:   one JSON snapshot, replaced atomically on save
//   - sqlite: a key/value table, schema managed by goose
//   - redis:  one JSON value under a configurable key
//   - none:   Open returns ErrDisabled and the caller runs in-memory only
package storage
