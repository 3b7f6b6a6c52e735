package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"farm-ledger/internal/observability"
	"farm-ledger/internal/storage"
)

func TestErrorClassification(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgErrUniqueViolation})
	assert.True(t, isDuplicateKeyError(dup))
	assert.False(t, isDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isDuplicateKeyError(nil))

	assert.True(t, isNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, isNotFoundError(errors.New("other")))
}

func TestObserve_NotFoundIsNotAnError(t *testing.T) {
	counter := observability.DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "observe_test")
	before := testutil.ToFloat64(counter)

	err := storage.ErrNotFound
	observe("observe_test", time.Now(), &err)
	assert.Equal(t, before, testutil.ToFloat64(counter))

	err = errors.New("boom")
	observe("observe_test", time.Now(), &err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
