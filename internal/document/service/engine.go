package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/docflow/docflow/backend/go-services/internal/document/repository"
	"github.com/docflow/docflow/backend/go-services/pkg/logger"
	"github.com/docflow/docflow/backend/go-services/pkg/metrics"
)

const (
	msgSubmitted     = "Submitted"
	msgApproved      = "Approved"
	msgNotFound      = "Document not found"
	msgRegistryError = "Failed to create approval registry entry"
)

// Engine applies one lifecycle transition to one document per call. Every
// call runs in its own unit of work with the document row locked for its
// whole duration.
type Engine struct {
	store repository.Store
	now   func() time.Time
}

func NewEngine(store repository.Store) *Engine {
	return &Engine{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Submit moves a DRAFT document to SUBMITTED. Outcomes are reported in the
// Result; a non-nil error means the store itself failed.
func (e *Engine) Submit(ctx context.Context, id int64, initiator string, comment *string) (document.Result, error) {
	res, err := e.transition(ctx, id, document.ActionSubmit, initiator, comment)
	if err != nil {
		logger.Errorf("submit document %d: %v", id, err)
		return res, err
	}
	return res, nil
}

// Approve moves a SUBMITTED document to APPROVED and writes its registry
// entry in the same unit of work. Approve never returns an error: a registry
// uniqueness violation is REGISTRY_ERROR and any other failure is CONFLICT.
func (e *Engine) Approve(ctx context.Context, id int64, initiator string, comment *string) (document.Result, error) {
	res, err := e.transition(ctx, id, document.ActionApprove, initiator, comment)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, repository.ErrDuplicateKey):
		logger.Warnf("approve document %d: %v", id, err)
		return e.record(document.ActionApprove, document.Result{ID: id, Code: document.ResultRegistryError, Message: msgRegistryError}), nil
	default:
		logger.Warnf("approve document %d: %v", id, err)
		return e.record(document.ActionApprove, document.Result{ID: id, Code: document.ResultConflict, Message: err.Error()}), nil
	}
}

func (e *Engine) transition(ctx context.Context, id int64, action document.Action, initiator string, comment *string) (document.Result, error) {
	start := time.Now()
	defer func() {
		metrics.TransitionDuration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
	}()

	var res document.Result
	err := e.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		d, err := tx.FindForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			res = document.Result{ID: id, Code: document.ResultNotFound, Message: msgNotFound}
			return nil
		}
		if err != nil {
			return err
		}

		next, err := document.Next(d.Status, action)
		var illegal *document.TransitionError
		if errors.As(err, &illegal) {
			res = document.Result{ID: id, Code: document.ResultConflict, Message: illegal.Error()}
			return nil
		}
		if err != nil {
			return err
		}

		now := e.now()
		d.Status = next
		d.UpdatedAt = now
		if err := tx.SaveDocument(ctx, d); err != nil {
			return err
		}
		if err := tx.SaveHistory(ctx, &document.HistoryEntry{
			DocumentID:  id,
			PerformedBy: initiator,
			Action:      action,
			PerformedAt: now,
			Comment:     comment,
		}); err != nil {
			return err
		}
		if action == document.ActionApprove {
			if err := tx.InsertRegistry(ctx, &document.RegistryEntry{
				DocumentID:     id,
				DocumentNumber: d.Number,
				ApprovedBy:     initiator,
				ApprovedAt:     now,
			}); err != nil {
				return err
			}
			res = document.Result{ID: id, Code: document.ResultSuccess, Message: msgApproved}
			return nil
		}
		res = document.Result{ID: id, Code: document.ResultSuccess, Message: msgSubmitted}
		return nil
	})
	if err != nil {
		return document.Result{ID: id}, fmt.Errorf("%s document %d: %w", action, id, err)
	}
	logger.Debugf("%s document %d by %s: %s", action, id, initiator, res.Code)
	return e.record(action, res), nil
}

func (e *Engine) record(action document.Action, res document.Result) document.Result {
	metrics.Transitions.WithLabelValues(string(action), string(res.Code)).Inc()
	return res
}
