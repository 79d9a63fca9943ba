package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/docflow/docflow/backend/go-services/pkg/logger"
	"github.com/docflow/docflow/backend/go-services/pkg/metrics"
)

// ErrInvalidBatch wraps every batch validation failure.
var ErrInvalidBatch = errors.New("invalid batch request")

const DefaultMaxBatchIDs = 1000

// BatchRequest names the documents to transition, in processing order.
type BatchRequest struct {
	IDs       []int64 `json:"ids" binding:"required,min=1"`
	Initiator string  `json:"initiator" binding:"required"`
	Comment   *string `json:"comment"`
}

// Batch runs one engine call per id. Items are independent: a failed item
// never rolls back or skips another.
type Batch struct {
	engine *Engine
	maxIDs int
}

func NewBatch(engine *Engine, maxIDs int) *Batch {
	if maxIDs <= 0 {
		maxIDs = DefaultMaxBatchIDs
	}
	return &Batch{engine: engine, maxIDs: maxIDs}
}

func (b *Batch) validate(req BatchRequest) error {
	if len(req.IDs) == 0 {
		return fmt.Errorf("%w: ids must not be empty", ErrInvalidBatch)
	}
	if len(req.IDs) > b.maxIDs {
		return fmt.Errorf("%w: at most %d ids allowed, got %d", ErrInvalidBatch, b.maxIDs, len(req.IDs))
	}
	if strings.TrimSpace(req.Initiator) == "" {
		return fmt.Errorf("%w: initiator must not be blank", ErrInvalidBatch)
	}
	seen := make(map[int64]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		if id <= 0 {
			return fmt.Errorf("%w: id %d is not positive", ErrInvalidBatch, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: id %d appears more than once", ErrInvalidBatch, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Submit submits every id in order. A store failure stops the batch; the
// results gathered so far are returned with the error.
func (b *Batch) Submit(ctx context.Context, req BatchRequest) ([]document.Result, error) {
	if err := b.validate(req); err != nil {
		return nil, err
	}
	metrics.BatchSize.WithLabelValues(string(document.ActionSubmit)).Observe(float64(len(req.IDs)))
	out := make([]document.Result, 0, len(req.IDs))
	for _, id := range req.IDs {
		res, err := b.engine.Submit(ctx, id, req.Initiator, req.Comment)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	logger.Infof("batch submit by %s: %s", req.Initiator, summarize(out))
	return out, nil
}

// Approve approves every id in order and always yields one result per id.
func (b *Batch) Approve(ctx context.Context, req BatchRequest) ([]document.Result, error) {
	if err := b.validate(req); err != nil {
		return nil, err
	}
	metrics.BatchSize.WithLabelValues(string(document.ActionApprove)).Observe(float64(len(req.IDs)))
	out := make([]document.Result, 0, len(req.IDs))
	for _, id := range req.IDs {
		res, _ := b.engine.Approve(ctx, id, req.Initiator, req.Comment)
		out = append(out, res)
	}
	logger.Infof("batch approve by %s: %s", req.Initiator, summarize(out))
	return out, nil
}

func summarize(results []document.Result) string {
	counts := map[document.ResultCode]int{}
	for _, r := range results {
		counts[r.Code]++
	}
	return fmt.Sprintf("total=%d success=%d not_found=%d conflict=%d registry_error=%d",
		len(results), counts[document.ResultSuccess], counts[document.ResultNotFound],
		counts[document.ResultConflict], counts[document.ResultRegistryError])
}
