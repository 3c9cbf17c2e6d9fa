package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/storage"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory ObjectStore that can be told to fail.
type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	types      map[string]string
	deleted    []string
	failPut    bool
	failDelete bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Put(_ context.Context, key, contentType string, data []byte) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return storage.Object{}, errStoreDown
	}
	contentType = storage.DetectContentType(contentType, data)
	m.objects[key] = data
	m.types[key] = contentType
	return storage.Object{
		URL:         storage.PublicURL("http://files.test", key),
		Path:        key,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return data, m.types[key], nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return errStoreDown
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []live.Event
}

func (r *recorder) Publish(ev live.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds(topic string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Topic == topic {
			out = append(out, ev.Kind)
		}
	}
	return out
}

// testServices wires every service against one database.
type testServices struct {
	db            *gorm.DB
	store         *memStore
	events        *recorder
	users         UserServicer
	projects      ProjectServicer
	expenses      ExpenseServicer
	notifications NotificationServicer
	analytics     AnalyticsServicer
	shares        ShareServicer
	exports       ExportServicer
}

func newTestServices(t *testing.T, db *gorm.DB) *testServices {
	t.Helper()

	ts := &testServices{db: db, store: newMemStore(), events: &recorder{}}
	ts.users = NewUserService(db)
	ts.projects = NewProjectService(db, ts.users, ts.store, ts.events)
	ts.notifications = NewNotificationService(db, ts.events)
	ts.expenses = NewExpenseService(db, ts.store, ts.notifications, ts.events)
	ts.analytics = NewAnalyticsService(db, ts.users)
	ts.shares = NewShareService(ts.projects, ts.analytics)
	ts.exports = NewExportService(ts.projects, ts.analytics)
	return ts
}
