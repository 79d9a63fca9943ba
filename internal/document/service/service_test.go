package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/docflow/docflow/backend/go-services/internal/document/repository"
	"github.com/docflow/docflow/backend/go-services/internal/numbering"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedNumbers struct {
	numbers []string
	err     error
}

func (f *fixedNumbers) Next(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	n := f.numbers[0]
	f.numbers = f.numbers[1:]
	return n, nil
}

func newService(store repository.Store, numbers numbering.Generator) Service {
	e := NewEngine(store)
	return New(store, numbers, NewBatch(e, 0), NewHarness(e, store, HarnessConfig{}, nil))
}

func TestService_CreateAndGet(t *testing.T) {
	store := repository.NewMemoryRepo()
	svc := newService(store, numbering.NewAtomicGenerator())
	ctx := context.Background()

	d, err := svc.Create(ctx, " alice ", "Quarterly report")
	require.NoError(t, err)
	assert.Equal(t, document.StatusDraft, d.Status)
	assert.Equal(t, "alice", d.Author)
	assert.Regexp(t, `^DOC-\d{8}-\d+$`, d.Number)

	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Number, got.Number)
	assert.NotNil(t, got.History)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_CreateValidation(t *testing.T) {
	svc := newService(repository.NewMemoryRepo(), numbering.NewAtomicGenerator())
	_, err := svc.Create(context.Background(), "", "title")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.Create(context.Background(), "alice", string(make([]byte, 501)))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_CreateRetriesNumberCollision(t *testing.T) {
	store := repository.NewMemoryRepo()
	newDoc(t, store, "DOC-20240101-1", document.StatusDraft)
	svc := newService(store, &fixedNumbers{numbers: []string{"DOC-20240101-1", "DOC-20240101-2"}})

	d, err := svc.Create(context.Background(), "alice", "title")
	require.NoError(t, err)
	assert.Equal(t, "DOC-20240101-2", d.Number)

	svc = newService(store, &fixedNumbers{err: errors.New("redis down")})
	_, err = svc.Create(context.Background(), "alice", "title")
	assert.Error(t, err)
}

func TestService_ListAndSearch(t *testing.T) {
	store := repository.NewMemoryRepo()
	svc := newService(store, numbering.NewAtomicGenerator())
	ctx := context.Background()
	a, err := svc.Create(ctx, "Alice", "one")
	require.NoError(t, err)
	b, err := svc.Create(ctx, "bob", "two")
	require.NoError(t, err)
	_, err = svc.SubmitBatch(ctx, BatchRequest{IDs: []int64{b.ID}, Initiator: "bob"})
	require.NoError(t, err)

	page, err := svc.List(ctx, []int64{a.ID, b.ID}, repository.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, repository.DefaultPageSize, page.Size)

	page, err = svc.List(ctx, nil, repository.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, b.ID, page.Items[0].ID, "newest first")

	page, err = svc.Search(ctx, repository.Filter{Status: document.StatusSubmitted}, repository.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, b.ID, page.Items[0].ID)

	page, err = svc.Search(ctx, repository.Filter{Author: "alice"}, repository.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.ID, page.Items[0].ID)

	_, err = svc.Search(ctx, repository.Filter{Status: "ARCHIVED"}, repository.PageRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	from, to := time.Now(), time.Now().Add(-time.Hour)
	_, err = svc.Search(ctx, repository.Filter{From: &from, To: &to}, repository.PageRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
