package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/docflow/docflow/backend/go-services/internal/document"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportKey(t *testing.T) {
	r := document.ConcurrencyReport{RunID: "3f2a", DocumentID: 42}
	assert.Equal(t, "reports/42/3f2a.json", ReportKey(r))
}

func TestNewMinIOStorage_RequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), nil)
	require.Error(t, err)
	_, err = NewMinIOStorage(context.Background(), &MinIOConfig{Bucket: "reports"})
	require.Error(t, err)
	assert.False(t, (&MinIOConfig{}).Enabled())
	assert.True(t, (&MinIOConfig{Endpoint: "localhost:9000"}).Enabled())
}

func TestRunKeyMatchesReportKey(t *testing.T) {
	r := document.ConcurrencyReport{RunID: "b7e1", DocumentID: 7}
	assert.Equal(t, ReportKey(r), RunKey(7, "b7e1"))
}

func TestMapObjectErr(t *testing.T) {
	err := mapObjectErr("reports/1/x.json", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	assert.ErrorIs(t, err, ErrReportNotFound)

	err = mapObjectErr("reports/1/x.json", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403})
	assert.NotErrorIs(t, err, ErrReportNotFound)
	assert.Contains(t, err.Error(), "reports/1/x.json")

	err = mapObjectErr("reports/1/x.json", errors.New("connection refused"))
	assert.NotErrorIs(t, err, ErrReportNotFound)
}
