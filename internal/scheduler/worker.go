// Package scheduler runs the background workers that push documents through
// the lifecycle: DRAFT documents are submitted, SUBMITTED ones approved.
package scheduler

import (
	"context"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/docflow/docflow/backend/go-services/internal/document/repository"
	"github.com/docflow/docflow/backend/go-services/internal/document/service"
	"github.com/docflow/docflow/backend/go-services/pkg/logger"
)

// Worker picks up to BatchSize documents in From status every Delay and
// runs them through the batch processor as one batch.
type Worker struct {
	Name      string
	From      document.Status
	Initiator string
	Comment   string
	Delay     time.Duration
	BatchSize int

	store repository.Store
	run   func(ctx context.Context, req service.BatchRequest) ([]document.Result, error)
}

// Stats is the outcome of one worker pass.
type Stats struct {
	Success   int
	Failed    int
	Remaining int64
}

func NewSubmitWorker(store repository.Store, batch *service.Batch, delay time.Duration, batchSize int) *Worker {
	return &Worker{
		Name:      "submit-worker",
		From:      document.StatusDraft,
		Initiator: "submit-worker",
		Comment:   "Auto-submitted by background worker",
		Delay:     delay,
		BatchSize: batchSize,
		store:     store,
		run:       batch.Submit,
	}
}

func NewApproveWorker(store repository.Store, batch *service.Batch, delay time.Duration, batchSize int) *Worker {
	return &Worker{
		Name:      "approve-worker",
		From:      document.StatusSubmitted,
		Initiator: "approve-worker",
		Comment:   "Auto-approved by background worker",
		Delay:     delay,
		BatchSize: batchSize,
		store:     store,
		run:       batch.Approve,
	}
}

// RunOnce processes a single batch.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	ids, _, err := w.store.IDsByStatus(ctx, w.From, w.BatchSize)
	if err != nil {
		return Stats{}, err
	}
	if len(ids) == 0 {
		return Stats{}, nil
	}

	comment := w.Comment
	results, err := w.run(ctx, service.BatchRequest{IDs: ids, Initiator: w.Initiator, Comment: &comment})
	var st Stats
	for _, r := range results {
		if r.Code == document.ResultSuccess {
			st.Success++
		} else {
			st.Failed++
		}
	}
	st.Failed += len(ids) - len(results)
	if err != nil {
		return st, err
	}

	_, remaining, cerr := w.store.IDsByStatus(ctx, w.From, 0)
	if cerr == nil {
		st.Remaining = remaining
	}
	logger.Infof("%s: processed %d documents: success=%d failed=%d remaining=%d",
		w.Name, len(ids), st.Success, st.Failed, st.Remaining)
	return st, nil
}

// Run repeats RunOnce with a fixed delay between the end of one pass and the
// start of the next, until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	logger.Infof("%s started: delay=%s batch=%d", w.Name, w.Delay, w.BatchSize)
	timer := time.NewTimer(w.Delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("%s stopped", w.Name)
			return
		case <-timer.C:
		}
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("%s: %v", w.Name, err)
		}
		timer.Reset(w.Delay)
	}
}
