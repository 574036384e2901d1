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

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "qc_links", []string{"id", "url"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"qc_links"}, []string{"id", "url"}).WillReturnResult(3)

	rows := [][]any{
		{"l1", "https://tradu.com/"},
		{"l2", "https://tradu.com/cfd"},
		{"l3", "mailto:support@tradu.com"},
	}
	n, err := CopyFrom(context.Background(), mock, "qc_links", []string{"id", "url"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"qc_checks"}, []string{"id", "name"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"c1", "Risk warning present"}}
	_, err = CopyFrom(context.Background(), mock, "qc_checks", []string{"id", "name"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO qc_checks")
	assert.NoError(t, mock.ExpectationsWereMet())
}
