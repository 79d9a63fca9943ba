package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSQLiteRepo(t *testing.T) (*GormRepo, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "docflow.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	r := NewGormRepo(db)
	require.NoError(t, r.Migrate(context.Background()))
	return r, db
}

func approveInTx(ctx context.Context, r Store, id int64, by string) error {
	return r.InTx(ctx, func(ctx context.Context, tx Tx) error {
		d, err := tx.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		d.Status = document.StatusApproved
		d.UpdatedAt = now
		if err := tx.SaveDocument(ctx, d); err != nil {
			return err
		}
		if err := tx.SaveHistory(ctx, &document.HistoryEntry{DocumentID: id, PerformedBy: by, Action: document.ActionApprove, PerformedAt: now}); err != nil {
			return err
		}
		return tx.InsertRegistry(ctx, &document.RegistryEntry{DocumentID: id, DocumentNumber: d.Number, ApprovedBy: by, ApprovedAt: now})
	})
}

func TestGormRepo_CreateGetSearch(t *testing.T) {
	r, _ := newSQLiteRepo(t)
	ctx := context.Background()

	a := &document.Document{Number: "DOC-1", Author: "Alice", Title: "first", Status: document.StatusDraft}
	require.NoError(t, r.Create(ctx, a))
	require.NotZero(t, a.ID)
	b := &document.Document{Number: "DOC-2", Author: "bob", Title: "second", Status: document.StatusSubmitted}
	require.NoError(t, r.Create(ctx, b))

	err := r.Create(ctx, &document.Document{Number: "DOC-1", Author: "x", Title: "dup", Status: document.StatusDraft})
	require.ErrorIs(t, err, ErrDuplicateKey)

	got, err := r.Get(ctx, a.ID, true)
	require.NoError(t, err)
	require.Equal(t, "first", got.Title)
	require.Empty(t, got.History)

	_, err = r.Get(ctx, 12345, false)
	require.ErrorIs(t, err, ErrNotFound)

	page, err := r.Search(ctx, Filter{Author: "alice"}, PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, a.ID, page.Items[0].ID)

	page, err = r.Search(ctx, Filter{IDs: []int64{a.ID, b.ID}}, PageRequest{Size: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	require.Equal(t, b.ID, page.Items[0].ID)

	ids, total, err := r.IDsByStatus(ctx, document.StatusSubmitted, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, []int64{b.ID}, ids)

	require.NoError(t, r.Ping(ctx))
}

func TestGormRepo_FindForUpdateMissing(t *testing.T) {
	r, _ := newSQLiteRepo(t)
	err := r.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.FindForUpdate(ctx, 7)
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGormRepo_ApproveWritesHistoryAndRegistry(t *testing.T) {
	r, _ := newSQLiteRepo(t)
	ctx := context.Background()
	d := &document.Document{Number: "DOC-1", Author: "alice", Title: "t", Status: document.StatusSubmitted}
	require.NoError(t, r.Create(ctx, d))

	require.NoError(t, approveInTx(ctx, r, d.ID, "carol"))

	got, err := r.Get(ctx, d.ID, true)
	require.NoError(t, err)
	require.Equal(t, document.StatusApproved, got.Status)
	require.Len(t, got.History, 1)
	require.Equal(t, document.ActionApprove, got.History[0].Action)

	reg, err := r.Registry(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "DOC-1", reg.DocumentNumber)
}

func TestGormRepo_DuplicateRegistryRollsBackEverything(t *testing.T) {
	r, db := newSQLiteRepo(t)
	ctx := context.Background()
	d := &document.Document{Number: "DOC-1", Author: "alice", Title: "t", Status: document.StatusSubmitted}
	require.NoError(t, r.Create(ctx, d))
	require.NoError(t, approveInTx(ctx, r, d.ID, "first"))

	// force the document back behind the registry's back
	require.NoError(t, db.Exec("UPDATE documents SET status = ? WHERE id = ?", document.StatusSubmitted, d.ID).Error)

	err := approveInTx(ctx, r, d.ID, "second")
	require.ErrorIs(t, err, ErrDuplicateKey)

	got, err := r.Get(ctx, d.ID, true)
	require.NoError(t, err)
	require.Equal(t, document.StatusSubmitted, got.Status)
	require.Len(t, got.History, 1)

	var count int64
	require.NoError(t, db.Model(&document.RegistryEntry{}).Where("document_id = ?", d.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
	reg, err := r.Registry(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "first", reg.ApprovedBy)
}
