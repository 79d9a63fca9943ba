package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/docflow/docflow/backend/go-services/internal/document/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stallingStore struct {
	*repository.MemoryRepo
}

func (stallingStore) InTx(ctx context.Context, _ func(context.Context, repository.Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

type memorySink struct {
	mu      sync.Mutex
	reports []document.ConcurrencyReport
	err     error
}

func (s *memorySink) SaveReport(_ context.Context, r document.ConcurrencyReport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.reports = append(s.reports, r)
	return "reports/" + r.RunID + ".json", nil
}

func newHarness(store repository.Store, cfg HarnessConfig, sink ReportSink) *Harness {
	return NewHarness(NewEngine(store), store, cfg, sink)
}

func TestHarness_ExactlyOneApprovalWins(t *testing.T) {
	store := repository.NewMemoryRepo()
	d := newDoc(t, store, "DOC-1", document.StatusSubmitted)
	h := newHarness(store, HarnessConfig{}, nil)

	report, err := h.Run(context.Background(), d.ID, ConcurrencyRequest{Threads: 5, Attempts: 10, Initiator: "race"})
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, d.ID, report.DocumentID)
	assert.Equal(t, 50, report.TotalAttempts)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 49, report.ConflictCount)
	assert.Equal(t, 0, report.ErrorCount)
	assert.Equal(t, report.TotalAttempts, report.SuccessCount+report.ConflictCount+report.ErrorCount)
	assert.Equal(t, document.StatusApproved, report.FinalStatus)
	assert.Greater(t, int64(report.Duration), int64(0))

	got, err := store.Get(context.Background(), d.ID, true)
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Regexp(t, `^race-\d+$`, got.History[0].PerformedBy)
	assert.Regexp(t, `^concurrent test attempt \d+$`, *got.History[0].Comment)
	_, err = store.Registry(context.Background(), d.ID)
	require.NoError(t, err)
}

func TestHarness_AttemptsAreNumberedFromZero(t *testing.T) {
	assert.Equal(t, "race-0", AttemptInitiator("race", 0))
	assert.Equal(t, "race-49", AttemptInitiator("race", 49))

	store := repository.NewMemoryRepo()
	d := newDoc(t, store, "DOC-1", document.StatusSubmitted)
	h := newHarness(store, HarnessConfig{}, nil)

	report, err := h.Run(context.Background(), d.ID, ConcurrencyRequest{Threads: 1, Attempts: 1, Initiator: "race"})
	require.NoError(t, err)
	require.Equal(t, 1, report.SuccessCount)

	got, err := store.Get(context.Background(), d.ID, true)
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Equal(t, "race-0", got.History[0].PerformedBy)
	assert.Equal(t, "concurrent test attempt 0", *got.History[0].Comment)
}

func TestHarness_DefaultsAndDraftDocument(t *testing.T) {
	store := repository.NewMemoryRepo()
	d := newDoc(t, store, "DOC-1", document.StatusDraft)
	h := newHarness(store, HarnessConfig{}, nil)

	report, err := h.Run(context.Background(), d.ID, ConcurrencyRequest{Initiator: "race"})
	require.NoError(t, err)
	assert.Equal(t, DefaultThreads*DefaultAttempts, report.TotalAttempts)
	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, report.TotalAttempts, report.ConflictCount)
	assert.Equal(t, document.StatusDraft, report.FinalStatus)
}

func TestHarness_RegistryErrorsAreCounted(t *testing.T) {
	store := repository.NewMemoryRepo()
	d := newDoc(t, store, "DOC-1", document.StatusSubmitted)
	res, _ := NewEngine(store).Approve(context.Background(), d.ID, "carol", nil)
	require.Equal(t, document.ResultSuccess, res.Code)
	forceStatus(t, store, d.ID, document.StatusSubmitted)

	report, err := newHarness(store, HarnessConfig{}, nil).Run(context.Background(), d.ID, ConcurrencyRequest{Threads: 2, Attempts: 2, Initiator: "race"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 4, report.ErrorCount)
	assert.Equal(t, document.StatusSubmitted, report.FinalStatus)
}

func TestHarness_TimeoutCountsAsConflict(t *testing.T) {
	base := repository.NewMemoryRepo()
	d := newDoc(t, base, "DOC-1", document.StatusSubmitted)
	h := newHarness(stallingStore{base}, HarnessConfig{AttemptTimeout: 20 * time.Millisecond}, nil)

	report, err := h.Run(context.Background(), d.ID, ConcurrencyRequest{Threads: 2, Attempts: 1, Initiator: "race"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.ConflictCount)
	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, document.StatusSubmitted, report.FinalStatus)
}

func TestHarness_Validation(t *testing.T) {
	store := repository.NewMemoryRepo()
	d := newDoc(t, store, "DOC-1", document.StatusSubmitted)
	h := newHarness(store, HarnessConfig{}, nil)

	for _, req := range []ConcurrencyRequest{
		{Threads: 51, Attempts: 1, Initiator: "x"},
		{Threads: 1, Attempts: 101, Initiator: "x"},
		{Threads: -1, Attempts: 1, Initiator: "x"},
		{Threads: 1, Attempts: 1, Initiator: " "},
	} {
		_, err := h.Run(context.Background(), d.ID, req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}

	_, err := h.Run(context.Background(), 404, ConcurrencyRequest{Initiator: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := store.Get(context.Background(), d.ID, true)
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestHarness_ArchivesReport(t *testing.T) {
	store := repository.NewMemoryRepo()
	d := newDoc(t, store, "DOC-1", document.StatusSubmitted)
	sink := &memorySink{}

	report, err := newHarness(store, HarnessConfig{}, sink).Run(context.Background(), d.ID, ConcurrencyRequest{Threads: 2, Attempts: 2, Initiator: "race"})
	require.NoError(t, err)
	require.Len(t, sink.reports, 1)
	assert.Equal(t, report.RunID, sink.reports[0].RunID)
	assert.Equal(t, "reports/"+report.RunID+".json", report.ArchiveKey)

	sink.err = errors.New("bucket gone")
	d2 := newDoc(t, store, "DOC-2", document.StatusSubmitted)
	report, err = newHarness(store, HarnessConfig{}, sink).Run(context.Background(), d2.ID, ConcurrencyRequest{Threads: 1, Attempts: 1, Initiator: "race"})
	require.NoError(t, err)
	assert.Empty(t, report.ArchiveKey)
	assert.Equal(t, 1, report.SuccessCount)
}
