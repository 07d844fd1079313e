package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifymanager/internal/policy"
	"notifymanager/internal/targets"
	logx "notifymanager/pkg/logx"
)

func sampleDoc() Document {
	return Document{
		Templates: []policy.NotificationTemplate{{
			ID: "t1", Name: "Garage", Title: "Garage", Message: "open", Type: "buttons",
			Priority: "high", Buttons: []policy.Action{{Action: "CLOSE", Title: "Close"}},
		}},
		Groups: []targets.Group{{Name: "family", Devices: []string{"pixel_7", "iphone"}}},
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, sampleDoc()))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, DocumentVersion, got.Version)
	require.Len(t, got.Templates, 1)
	assert.Equal(t, "CLOSE", got.Templates[0].Buttons[0].Action)
	assert.Equal(t, []string{"pixel_7", "iphone"}, got.Groups[0].Devices)

	require.NoError(t, s.Save(ctx, Document{}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Templates)
	assert.NotNil(t, got.Templates)
}

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " NONE "} {
		_, err := Open(Config{Driver: d}, logx.Nop())
		assert.ErrorIs(t, err, ErrDisabled)
	}
	_, err := Open(Config{Driver: "etcd"}, logx.Nop())
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	s, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store", "doc")}, logx.Nop())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStoreRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":2,"templates":[]}`), 0o600))
	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	assert.ErrorContains(t, err, "newer")
}

func TestFileStoreUnversionedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"templates":[{"id":"a","name":"A"}]}`), 0o600))
	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "A", doc.Templates[0].Name)
}

func TestSQLiteStore(t *testing.T) {
	s, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "nm.db")}, logx.Nop())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

// fakeKV stands in for a redis server.
type fakeKV struct {
	m   map[string]string
	err error
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.m[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.m[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Close() error { return nil }

func TestRedisStore(t *testing.T) {
	kv := &fakeKV{m: map[string]string{}}
	s := newRedisStore(kv, "", logx.Nop())
	exerciseStore(t, s)
	assert.Contains(t, kv.m, defaultRedisKey)
}

func TestRedisStoreWrapsErrors(t *testing.T) {
	boom := errors.New("connection refused")
	s := newRedisStore(&fakeKV{m: map[string]string{}, err: boom}, "k", logx.Nop())
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Save(context.Background(), Document{}), boom)
}

func TestOpenRedisNeedsAddr(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	assert.Error(t, err)
}
