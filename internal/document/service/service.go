package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/docflow/docflow/backend/go-services/internal/document/repository"
	"github.com/docflow/docflow/backend/go-services/internal/numbering"
)

var (
	// ErrInvalidRequest wraps validation failures outside batches.
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = repository.ErrNotFound
)

const (
	maxAuthorLen = 255
	maxTitleLen  = 500
	numberTries  = 3
)

// Service defines the document business operations used by the handler layer.
type Service interface {
	Create(ctx context.Context, author, title string) (*document.Document, error)
	Get(ctx context.Context, id int64) (*document.Document, error)
	List(ctx context.Context, ids []int64, p repository.PageRequest) (*repository.Page, error)
	Search(ctx context.Context, f repository.Filter, p repository.PageRequest) (*repository.Page, error)
	SubmitBatch(ctx context.Context, req BatchRequest) ([]document.Result, error)
	ApproveBatch(ctx context.Context, req BatchRequest) ([]document.Result, error)
	RunConcurrencyTest(ctx context.Context, id int64, req ConcurrencyRequest) (document.ConcurrencyReport, error)
}

type documentService struct {
	store   repository.Store
	numbers numbering.Generator
	batch   *Batch
	harness *Harness
}

// New wires a Service over store.
func New(store repository.Store, numbers numbering.Generator, batch *Batch, harness *Harness) Service {
	return &documentService{store: store, numbers: numbers, batch: batch, harness: harness}
}

func (s *documentService) Create(ctx context.Context, author, title string) (*document.Document, error) {
	author, title = strings.TrimSpace(author), strings.TrimSpace(title)
	if author == "" || title == "" {
		return nil, fmt.Errorf("%w: author and title are required", ErrInvalidRequest)
	}
	if len(author) > maxAuthorLen {
		return nil, fmt.Errorf("%w: author exceeds %d characters", ErrInvalidRequest, maxAuthorLen)
	}
	if len(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidRequest, maxTitleLen)
	}

	var lastErr error
	for i := 0; i < numberTries; i++ {
		number, err := s.numbers.Next(ctx)
		if err != nil {
			return nil, err
		}
		d := &document.Document{Number: number, Author: author, Title: title, Status: document.StatusDraft}
		err = s.store.Create(ctx, d)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *documentService) Get(ctx context.Context, id int64) (*document.Document, error) {
	return s.store.Get(ctx, id, true)
}

// List pages through the given ids, or through every document when ids is empty.
func (s *documentService) List(ctx context.Context, ids []int64, p repository.PageRequest) (*repository.Page, error) {
	return s.store.Search(ctx, repository.Filter{IDs: ids}, p)
}

func (s *documentService) Search(ctx context.Context, f repository.Filter, p repository.PageRequest) (*repository.Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, f.Status)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidRequest)
	}
	return s.store.Search(ctx, f, p)
}

func (s *documentService) SubmitBatch(ctx context.Context, req BatchRequest) ([]document.Result, error) {
	return s.batch.Submit(ctx, req)
}

func (s *documentService) ApproveBatch(ctx context.Context, req BatchRequest) ([]document.Result, error) {
	return s.batch.Approve(ctx, req)
}

func (s *documentService) RunConcurrencyTest(ctx context.Context, id int64, req ConcurrencyRequest) (document.ConcurrencyReport, error) {
	return s.harness.Run(ctx, id, req)
}
