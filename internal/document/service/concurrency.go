package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/docflow/docflow/backend/go-services/internal/document/repository"
	"github.com/docflow/docflow/backend/go-services/pkg/logger"
	"github.com/docflow/docflow/backend/go-services/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultThreads        = 5
	DefaultAttempts       = 10
	DefaultMaxThreads     = 50
	DefaultMaxAttempts    = 100
	DefaultAttemptTimeout = 15 * time.Second
)

// ConcurrencyRequest sizes a concurrent approval run. Zero Threads or
// Attempts fall back to the defaults.
type ConcurrencyRequest struct {
	Threads   int    `json:"threads"`
	Attempts  int    `json:"attempts"`
	Initiator string `json:"initiator" binding:"required"`
}

// ReportSink archives finished reports and returns where they were stored.
type ReportSink interface {
	SaveReport(ctx context.Context, r document.ConcurrencyReport) (string, error)
}

type HarnessConfig struct {
	MaxThreads     int
	MaxAttempts    int
	AttemptTimeout time.Duration
}

// Harness races approve attempts against a single document. Only one can
// succeed if the row lock holds.
type Harness struct {
	engine *Engine
	store  repository.Store
	cfg    HarnessConfig
	sink   ReportSink
}

// NewHarness builds a harness; sink may be nil.
func NewHarness(engine *Engine, store repository.Store, cfg HarnessConfig, sink ReportSink) *Harness {
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = DefaultMaxThreads
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	return &Harness{engine: engine, store: store, cfg: cfg, sink: sink}
}

// AttemptInitiator names attempt n (0-based) of a run started by initiator.
func AttemptInitiator(initiator string, n int) string {
	return fmt.Sprintf("%s-%d", initiator, n)
}

func (h *Harness) normalize(req ConcurrencyRequest) (ConcurrencyRequest, error) {
	if req.Threads == 0 {
		req.Threads = DefaultThreads
	}
	if req.Attempts == 0 {
		req.Attempts = DefaultAttempts
	}
	if req.Threads < 1 || req.Threads > h.cfg.MaxThreads {
		return req, fmt.Errorf("%w: threads must be between 1 and %d", ErrInvalidRequest, h.cfg.MaxThreads)
	}
	if req.Attempts < 1 || req.Attempts > h.cfg.MaxAttempts {
		return req, fmt.Errorf("%w: attempts must be between 1 and %d", ErrInvalidRequest, h.cfg.MaxAttempts)
	}
	if strings.TrimSpace(req.Initiator) == "" {
		return req, fmt.Errorf("%w: initiator must not be blank", ErrInvalidRequest)
	}
	return req, nil
}

// Run submits Threads*Attempts approve attempts to a pool of Threads workers.
// No worker starts before all of them are ready. Each outcome is awaited for
// at most the configured attempt timeout; an attempt that does not report in
// time is counted as a conflict.
func (h *Harness) Run(ctx context.Context, id int64, req ConcurrencyRequest) (document.ConcurrencyReport, error) {
	req, err := h.normalize(req)
	if err != nil {
		return document.ConcurrencyReport{}, err
	}
	if _, err := h.store.Get(ctx, id, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return document.ConcurrencyReport{}, fmt.Errorf("document %d: %w", id, repository.ErrNotFound)
		}
		return document.ConcurrencyReport{}, err
	}

	report := document.ConcurrencyReport{
		RunID:         uuid.New().String(),
		DocumentID:    id,
		TotalAttempts: req.Threads * req.Attempts,
	}
	logger.Infof("concurrency run %s: document=%d threads=%d attempts=%d", report.RunID, id, req.Threads, req.Attempts)
	start := time.Now()

	jobs := make(chan int, report.TotalAttempts)
	results := make([]chan document.Result, report.TotalAttempts)
	for n := range results {
		results[n] = make(chan document.Result, 1)
		jobs <- n
	}
	close(jobs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	barrier := make(chan struct{})
	for w := 0; w < req.Threads; w++ {
		g.Go(func() error {
			select {
			case <-barrier:
			case <-gctx.Done():
				return nil
			}
			for n := range jobs {
				if gctx.Err() != nil {
					return nil
				}
				comment := fmt.Sprintf("concurrent test attempt %d", n)
				res, _ := h.engine.Approve(gctx, id, AttemptInitiator(req.Initiator, n), &comment)
				results[n] <- res
			}
			return nil
		})
	}
	close(barrier)

	timer := time.NewTimer(h.cfg.AttemptTimeout)
	defer timer.Stop()
	for n := range results {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(h.cfg.AttemptTimeout)
		select {
		case res := <-results[n]:
			switch res.Code {
			case document.ResultSuccess:
				report.SuccessCount++
			case document.ResultRegistryError:
				report.ErrorCount++
			default:
				report.ConflictCount++
			}
		case <-timer.C:
			logger.Warnf("concurrency run %s: attempt %d timed out after %s", report.RunID, n, h.cfg.AttemptTimeout)
			report.ConflictCount++
		case <-ctx.Done():
			report.ConflictCount++
		}
	}
	cancel()
	_ = g.Wait()

	final, err := h.store.Get(context.WithoutCancel(ctx), id, false)
	if err != nil {
		return report, fmt.Errorf("read final status of document %d: %w", id, err)
	}
	report.FinalStatus = final.Status
	report.Duration = time.Since(start)
	metrics.ConcurrencyRuns.Inc()
	logger.Infof("concurrency run %s finished: success=%d conflict=%d error=%d final=%s in %s",
		report.RunID, report.SuccessCount, report.ConflictCount, report.ErrorCount, report.FinalStatus, report.Duration)

	if h.sink != nil {
		key, err := h.sink.SaveReport(context.WithoutCancel(ctx), report)
		if err != nil {
			logger.Warnf("concurrency run %s: archive report: %v", report.RunID, err)
		} else {
			report.ArchiveKey = key
		}
	}
	return report, nil
}
