package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey is returned by Tx.InsertRegistry when the document
	// already has an approval registry entry. The unit of work must be aborted.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Tx is the write side of one unit of work. Locks taken by FindForUpdate are
// held until the surrounding InTx call returns.
type Tx interface {
	FindForUpdate(ctx context.Context, id int64) (*document.Document, error)
	SaveDocument(ctx context.Context, d *document.Document) error
	SaveHistory(ctx context.Context, h *document.HistoryEntry) error
	InsertRegistry(ctx context.Context, e *document.RegistryEntry) error
}

// Store is the persistence collaborator of the lifecycle engine.
type Store interface {
	// InTx runs fn in a fresh unit of work, independent of any unit of work
	// the caller may be part of. Writes commit only if fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Create(ctx context.Context, d *document.Document) error
	Get(ctx context.Context, id int64, withHistory bool) (*document.Document, error)
	Search(ctx context.Context, f Filter, p PageRequest) (*Page, error)
	// IDsByStatus returns up to limit ids in the given status (ascending) and
	// the total number of documents in that status. limit <= 0 returns all.
	IDsByStatus(ctx context.Context, status document.Status, limit int) ([]int64, int64, error)
	Registry(ctx context.Context, documentID int64) (*document.RegistryEntry, error)
	Ping(ctx context.Context) error
}

// Filter narrows Search. Zero values match everything.
type Filter struct {
	IDs    []int64
	Status document.Status
	Author string // case-insensitive exact match
	From   *time.Time
	To     *time.Time
}

type PageRequest struct {
	Page int
	Size int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	// MaxPage keeps Page*Size well inside int32 for every backend.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Normalize clamps page and size into the accepted range.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	return p
}

func (p PageRequest) Offset() int { return p.Page * p.Size }

// Page is one slice of a Search result, newest first.
type Page struct {
	Items []*document.Document `json:"content"`
	Total int64                `json:"totalElements"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
}
