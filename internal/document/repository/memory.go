package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
)

// MemoryRepo is an in-memory Store used for development and unit tests.
// Row locks are per-id semaphores; a unit of work stages its writes and
// applies them under one write lock at commit, so readers never observe a
// status change without its history entry.
type MemoryRepo struct {
	locks *keyedLocks

	mu        sync.RWMutex
	docs      map[int64]*document.Document
	history   map[int64][]document.HistoryEntry
	registry  map[int64]document.RegistryEntry
	nextDocID int64
	nextHisID int64
	nextRegID int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		locks:    newKeyedLocks(),
		docs:     make(map[int64]*document.Document),
		history:  make(map[int64][]document.HistoryEntry),
		registry: make(map[int64]document.RegistryEntry),
	}
}

func (m *MemoryRepo) Create(_ context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.docs {
		if existing.Number == d.Number {
			return fmt.Errorf("%w: number %s", ErrDuplicateKey, d.Number)
		}
	}
	m.nextDocID++
	d.ID = m.nextDocID
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.History = nil
	m.docs[d.ID] = cloneDoc(d)
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id int64, withHistory bool) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneDoc(d)
	if withHistory {
		out.History = append([]document.HistoryEntry{}, m.history[id]...)
	}
	return out, nil
}

func (m *MemoryRepo) Search(_ context.Context, f Filter, p PageRequest) (*Page, error) {
	p = p.Normalize()
	var ids map[int64]bool
	if len(f.IDs) > 0 {
		ids = make(map[int64]bool, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = true
		}
	}

	m.mu.RLock()
	matched := make([]*document.Document, 0, len(m.docs))
	for _, d := range m.docs {
		if ids != nil && !ids[d.ID] {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Author != "" && !strings.EqualFold(d.Author, f.Author) {
			continue
		}
		if f.From != nil && d.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && d.CreatedAt.After(*f.To) {
			continue
		}
		matched = append(matched, cloneDoc(d))
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	out := &Page{Total: int64(len(matched)), Page: p.Page, Size: p.Size, Items: []*document.Document{}}
	if start := p.Offset(); start >= 0 && start < len(matched) {
		end := start + p.Size
		if end > len(matched) {
			end = len(matched)
		}
		out.Items = matched[start:end]
	}
	return out, nil
}

func (m *MemoryRepo) IDsByStatus(_ context.Context, status document.Status, limit int) ([]int64, int64, error) {
	m.mu.RLock()
	all := make([]int64, 0)
	for id, d := range m.docs {
		if d.Status == status {
			all = append(all, id)
		}
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	total := int64(len(all))
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *MemoryRepo) Registry(_ context.Context, documentID int64) (*document.RegistryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.registry[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }

func (m *MemoryRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{repo: m, held: make(map[int64]func()), docs: make(map[int64]*document.Document)}
	defer tx.release()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *MemoryRepo) commit(tx *memoryTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// second check: the registry is authoritative even if lock scoping slipped
	for _, e := range tx.registry {
		if _, dup := m.registry[e.DocumentID]; dup {
			return fmt.Errorf("%w: approval registry entry for document %d", ErrDuplicateKey, e.DocumentID)
		}
	}
	for id, d := range tx.docs {
		m.docs[id] = d
	}
	for _, h := range tx.history {
		m.nextHisID++
		h.ID = m.nextHisID
		m.history[h.DocumentID] = append(m.history[h.DocumentID], h)
	}
	for _, e := range tx.registry {
		m.nextRegID++
		e.ID = m.nextRegID
		m.registry[e.DocumentID] = e
	}
	return nil
}

type memoryTx struct {
	repo     *MemoryRepo
	held     map[int64]func()
	docs     map[int64]*document.Document
	history  []document.HistoryEntry
	registry []document.RegistryEntry
}

func (t *memoryTx) release() {
	for _, unlock := range t.held {
		unlock()
	}
}

func (t *memoryTx) FindForUpdate(ctx context.Context, id int64) (*document.Document, error) {
	if _, ok := t.held[id]; !ok {
		unlock, err := t.repo.locks.Lock(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock document %d: %w", id, err)
		}
		t.held[id] = unlock
	}
	if d, ok := t.docs[id]; ok {
		return cloneDoc(d), nil
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	d, ok := t.repo.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(d), nil
}

func (t *memoryTx) SaveDocument(_ context.Context, d *document.Document) error {
	if _, ok := t.held[d.ID]; !ok {
		return fmt.Errorf("document %d is not locked by this unit of work", d.ID)
	}
	c := cloneDoc(d)
	c.History = nil
	t.docs[d.ID] = c
	return nil
}

func (t *memoryTx) SaveHistory(_ context.Context, h *document.HistoryEntry) error {
	t.history = append(t.history, *h)
	return nil
}

func (t *memoryTx) InsertRegistry(_ context.Context, e *document.RegistryEntry) error {
	for _, staged := range t.registry {
		if staged.DocumentID == e.DocumentID {
			return fmt.Errorf("%w: approval registry entry for document %d", ErrDuplicateKey, e.DocumentID)
		}
	}
	t.repo.mu.RLock()
	_, dup := t.repo.registry[e.DocumentID]
	t.repo.mu.RUnlock()
	if dup {
		return fmt.Errorf("%w: approval registry entry for document %d", ErrDuplicateKey, e.DocumentID)
	}
	t.registry = append(t.registry, *e)
	return nil
}

func cloneDoc(d *document.Document) *document.Document {
	c := *d
	c.History = nil
	return &c
}
