package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assignmentColumns = []string{"run_id", "feature_id", "class"}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "run_assignments", assignmentColumns, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_assignments"}, assignmentColumns).WillReturnResult(3)

	rows := [][]any{{"r1", "06001400100", 0}, {"r1", "06001400200", 1}, {"r1", "06001400300", 2}}
	n, err := CopyFrom(context.Background(), mock, "run_assignments", assignmentColumns, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_assignments"}, assignmentColumns).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "run_assignments", assignmentColumns, [][]any{{"r1", "a", 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO run_assignments")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"run_assignments"}, assignmentColumns).WillReturnResult(2)
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	n, err := CopyFromTx(ctx, tx, "run_assignments", assignmentColumns, [][]any{{"r1", "a", 0}, {"r1", "b", 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolSatisfiedByMock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	var _ Pool = mock
}
