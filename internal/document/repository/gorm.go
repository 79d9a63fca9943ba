package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepo is the relational Store. Row locks are SELECT ... FOR UPDATE
// inside a transaction opened on the root handle, so every InTx call is its
// own transaction and never joins one the caller might hold.
type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// Migrate creates or updates the documents, history and registry tables.
func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&document.Document{}, &document.HistoryEntry{}, &document.RegistryEntry{})
}

func (r *GormRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormTx{db: tx})
	})
}

func (r *GormRepo) Create(ctx context.Context, d *document.Document) error {
	d.History = nil
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(d).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: number %s", ErrDuplicateKey, d.Number)
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *GormRepo) Get(ctx context.Context, id int64, withHistory bool) (*document.Document, error) {
	q := r.db.WithContext(ctx)
	if withHistory {
		q = q.Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("performed_at ASC, id ASC")
		})
	}
	var d document.Document
	if err := q.First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return &d, nil
}

func (r *GormRepo) Search(ctx context.Context, f Filter, p PageRequest) (*Page, error) {
	p = p.Normalize()
	q := r.db.WithContext(ctx).Model(&document.Document{})
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Author != "" {
		q = q.Where("LOWER(author) = ?", strings.ToLower(f.Author))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	items := []*document.Document{}
	if err := q.Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.Size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return &Page{Items: items, Total: total, Page: p.Page, Size: p.Size}, nil
}

func (r *GormRepo) IDsByStatus(ctx context.Context, status document.Status, limit int) ([]int64, int64, error) {
	q := r.db.WithContext(ctx).Model(&document.Document{}).Where("status = ?", status).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count %s documents: %w", status, err)
	}
	ids := []int64{}
	list := q.Order("id ASC")
	if limit > 0 {
		list = list.Limit(limit)
	}
	if err := list.Pluck("id", &ids).Error; err != nil {
		return nil, 0, fmt.Errorf("list %s documents: %w", status, err)
	}
	return ids, total, nil
}

func (r *GormRepo) Registry(ctx context.Context, documentID int64) (*document.RegistryEntry, error) {
	var e document.RegistryEntry
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registry entry %d: %w", documentID, err)
	}
	return &e, nil
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) FindForUpdate(ctx context.Context, id int64) (*document.Document, error) {
	var d document.Document
	err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock document %d: %w", id, err)
	}
	return &d, nil
}

func (t *gormTx) SaveDocument(ctx context.Context, d *document.Document) error {
	res := t.db.WithContext(ctx).Model(&document.Document{}).Where("id = ?", d.ID).
		Updates(map[string]interface{}{"status": d.Status, "updated_at": d.UpdatedAt})
	if res.Error != nil {
		return fmt.Errorf("save document %d: %w", d.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) SaveHistory(ctx context.Context, h *document.HistoryEntry) error {
	if err := t.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("save history for document %d: %w", h.DocumentID, err)
	}
	return nil
}

func (t *gormTx) InsertRegistry(ctx context.Context, e *document.RegistryEntry) error {
	if err := t.db.WithContext(ctx).Create(e).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: approval registry entry for document %d: %v", ErrDuplicateKey, e.DocumentID, err)
		}
		return fmt.Errorf("insert registry entry for document %d: %w", e.DocumentID, err)
	}
	return nil
}
