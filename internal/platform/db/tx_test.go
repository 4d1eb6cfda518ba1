package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/loom-erp/loom-erp/internal/shared"
)

func TestMapTxErrorSerializationFailure(t *testing.T) {
	err := mapTxError(&pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"})
	require.ErrorIs(t, err, shared.ErrConflict)

	err = mapTxError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestMapTxErrorUnwrapsThroughLayers(t *testing.T) {
	inner := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	err := mapTxError(fmt.Errorf("allocate invoice number: %w", inner))
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestMapTxErrorPassesOthersThrough(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	require.Equal(t, error(unique), mapTxError(unique))

	plain := errors.New("boom")
	require.Equal(t, plain, mapTxError(plain))
	require.NoError(t, mapTxError(nil))
}
