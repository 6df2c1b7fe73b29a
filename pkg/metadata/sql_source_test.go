package metadata

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLSource_Mock(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src := NewSQLSource(db, WithDollarPlaceholders())

	t.Run("versions", func(t *testing.T) {
		mock.ExpectQuery(`SELECT api_version FROM metadata_documents WHERE service = \$1`).
			WithArgs("sqs").
			WillReturnRows(sqlmock.NewRows([]string{"api_version"}).
				AddRow("2012-11-05").
				AddRow("2011-10-01"))

		versions, err := src.Versions(ctx, "sqs")
		require.NoError(t, err)
		assert.Equal(t, []string{"2011-10-01", "2012-11-05"}, versions)
	})

	t.Run("fetch", func(t *testing.T) {
		mock.ExpectQuery(`SELECT document FROM metadata_documents WHERE service = \$1 AND api_version = \$2`).
			WithArgs("sqs", "2012-11-05").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).
				AddRow(`{"resources": {"Queue": {}}}`))

		desc, origin, err := src.Fetch(ctx, "sqs", "2012-11-05")
		require.NoError(t, err)
		assert.Contains(t, desc.Resources, "Queue")
		assert.Equal(t, "sql:metadata_documents/sqs-2012-11-05", origin)
	})

	t.Run("fetch missing row", func(t *testing.T) {
		mock.ExpectQuery(`SELECT document FROM metadata_documents`).
			WithArgs("sqs", "1999").
			WillReturnError(sql.ErrNoRows)

		_, _, err := src.Fetch(ctx, "sqs", "1999")
		assert.ErrorIs(t, err, ErrMetadataNotFound)
	})

	t.Run("query errors are wrapped", func(t *testing.T) {
		boom := errors.New("connection reset")
		mock.ExpectQuery(`SELECT api_version FROM metadata_documents`).
			WillReturnError(boom)

		_, err := src.Versions(ctx, "sqs")
		assert.ErrorIs(t, err, boom)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_CustomTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src := NewSQLSource(db, WithTable("docs"))
	assert.Equal(t, "sql:docs", src.Name())

	mock.ExpectQuery(`SELECT api_version FROM docs WHERE service = \?`).
		WithArgs("sns").
		WillReturnRows(sqlmock.NewRows([]string{"api_version"}))

	versions, err := src.Versions(context.Background(), "sns")
	require.NoError(t, err)
	assert.Empty(t, versions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	src := NewSQLSource(db)
	require.NoError(t, src.EnsureSchema(ctx))
	require.NoError(t, src.EnsureSchema(ctx))

	require.NoError(t, src.Put(ctx, "sqs", "2012-11-05", []byte(queueYAML)))
	require.NoError(t, src.Put(ctx, "sqs", "2011-10-01", []byte(`{"resources": {}}`)))

	store := NewStore([]Source{src})
	desc, err := store.Load(ctx, "sqs", "")
	require.NoError(t, err)
	assert.Equal(t, "2012-11-05", desc.APIVersion)
	assert.Equal(t, "CreateQueue", desc.Resources["Queue"].Operations["create"].APIName)

	// Put replaces an existing version
	require.NoError(t, src.Put(ctx, "sqs", "2012-11-05", []byte(`{"resources": {"Topic": {}}}`)))
	desc, err = store.Load(ctx, "sqs", "2012-11-05")
	require.NoError(t, err)
	assert.Contains(t, desc.Resources, "Topic")
	assert.NotContains(t, desc.Resources, "Queue")
}

func TestSQLSource_Postgres(t *testing.T) {
	dsn := os.Getenv("DYNRES_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DYNRES_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		t.Skip("postgres not reachable:", err)
	}

	src := NewSQLSource(db, WithTable("dynres_test_documents"), WithDollarPlaceholders())
	require.NoError(t, src.EnsureSchema(ctx))
	t.Cleanup(func() {
		db.Exec("DROP TABLE IF EXISTS dynres_test_documents")
	})

	require.NoError(t, src.Put(ctx, "sqs", "2012-11-05", []byte(`{"resources": {"Queue": {}}}`)))
	versions, err := src.Versions(ctx, "sqs")
	require.NoError(t, err)
	assert.Equal(t, []string{"2012-11-05"}, versions)
}
