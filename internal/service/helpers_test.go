package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vbonduro/gpstrack/internal/assetstore"
	"github.com/vbonduro/gpstrack/internal/db"
	"github.com/vbonduro/gpstrack/internal/domain"
	"github.com/vbonduro/gpstrack/internal/store"
)

// memAssetStore is an in-memory assetstore.AssetStore. It does not decode
// images; data starting with "bad" is treated as undecodable.
type memAssetStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	counter   int
	saveErr   error
	deleteErr error
	saves     int
}

func newMemAssetStore() *memAssetStore {
	return &memAssetStore{data: make(map[string][]byte)}
}

func (m *memAssetStore) Save(_ context.Context, camID string, data []byte) (assetstore.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return assetstore.Asset{}, m.saveErr
	}
	if strings.HasPrefix(string(data), "bad") {
		return assetstore.Asset{}, fmt.Errorf("%w: unreadable image", domain.ErrInvalidInput)
	}
	m.counter++
	name := fmt.Sprintf("img%04d.jpg", m.counter)
	path := assetstore.JoinPath(camID, name)
	m.data[path] = data
	return assetstore.Asset{Path: path, FileName: name, MimeType: "image/jpeg", Size: int64(len(data))}, nil
}

func (m *memAssetStore) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[path]
	return ok, nil
}

func (m *memAssetStore) Read(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[path]
	if !ok {
		return nil, domain.NotFound("asset not found")
	}
	return data, nil
}

func (m *memAssetStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.data, path)
	return nil
}

func (m *memAssetStore) DeleteCamera(_ context.Context, camID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for p := range m.data {
		if strings.HasPrefix(p, camID+"/") {
			delete(m.data, p)
		}
	}
	return nil
}

func (m *memAssetStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.data = make(map[string][]byte)
	return nil
}

func (m *memAssetStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

type published struct {
	camID   string
	payload any
}

// recordingPublisher records every Publish call.
type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
}

func (p *recordingPublisher) Publish(camID string, payload any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{camID: camID, payload: payload})
	return 1
}

func (p *recordingPublisher) published() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.calls...)
}

// failingEvents fails every write.
type failingEvents struct{}

func (failingEvents) CreateWithObjects(context.Context, string, time.Time, string, []domain.DetectedObject) (*domain.DetectionEvent, error) {
	return nil, errors.New("disk I/O error")
}

func (failingEvents) ListSince(context.Context, string, time.Time) ([]*domain.DetectionEvent, error) {
	return nil, errors.New("disk I/O error")
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

type fixture struct {
	db        *sql.DB
	cameras   *store.CameraStore
	events    *store.EventStore
	registry  *CameraRegistry
	assets    *memAssetStore
	publisher *recordingPublisher
	svc       *DetectionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := openTestDB(t)
	f := &fixture{
		db:        d,
		cameras:   store.NewCameraStore(d),
		events:    store.NewEventStore(d),
		assets:    newMemAssetStore(),
		publisher: &recordingPublisher{},
	}
	f.registry = NewCameraRegistry(f.cameras, slog.Default())
	f.svc = NewDetectionService(f.registry, f.events, f.assets, f.publisher, slog.Default(),
		DetectionOptions{FileURLPrefix: "/api/files/"})
	return f
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
