package evolve

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlogbase/evolve/unit"
)

var testDBSeq int

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:evolve_test_%d_%d?mode=memory&cache=shared", testDBSeq, time.Now().UnixNano())

	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func fastSqlite(db *sqlx.DB) OptionFunc {
	return UseSqlite(db.DB, WithSqliteMaxConnectionAttempts(1), WithSqliteConnectionTimeout(2*time.Second))
}

func Test_RunnerCanBeInstantiated(t *testing.T) {
	db := openTestDB(t)

	reg, err := unit.NewRegistry()
	require.NoError(t, err)

	r, closer, err := NewRunner(reg, fastSqlite(db))
	assert.NoError(t, err)
	assert.NotNil(t, r)

	assert.NoError(t, closer())
}

func Test_NewRunnerRequiresAGateway(t *testing.T) {
	reg, err := unit.NewRegistry()
	require.NoError(t, err)

	r, _, err := NewRunner(reg)
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, ErrGatewayNotInitialized))
}

func Test_NewRunnerRequiresARegistry(t *testing.T) {
	db := openTestDB(t)

	r, _, err := NewRunner(nil, fastSqlite(db))
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, ErrNoRegistry))
}

func Test_ItAppliesAPendingUnitAndSkipsItOnTheSecondRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec("CREATE TABLE conversation (id INTEGER PRIMARY KEY, title TEXT);")
	require.NoError(t, err)

	reg, err := unit.NewRegistry(
		unit.AddColumn("conversation", "is_pinned", "BOOLEAN NOT NULL DEFAULT FALSE"),
	)
	require.NoError(t, err)

	r, closer, err := NewRunner(reg, fastSqlite(db))
	require.NoError(t, err)

	defer func() {
		assert.NoError(t, closer())
	}()

	records, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, unit.Applied, records[0].Outcome)
	assert.Equal(t, "add_column_conversation_is_pinned", records[0].Name)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('conversation') WHERE name = 'is_pinned';").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// second run must be a pure no-op
	recordsAgain, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, recordsAgain, 1)
	assert.Equal(t, unit.Skipped, recordsAgain[0].Outcome)

	// the ledger keeps exactly one entry for the single apply
	entries, err := r.History(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "add_column_conversation_is_pinned", entries[0].Name)
}

func Test_RecordsFollowRegistryOrderAndRunContinuesPastFailures(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec("CREATE TABLE conversation (id INTEGER PRIMARY KEY);")
	require.NoError(t, err)

	broken := unit.Raw(
		"broken_detection",
		func(ctx context.Context, s unit.Schema) (bool, error) {
			return false, errors.New("catalog introspection blew up")
		},
		"SELECT 1",
	)

	reg, err := unit.NewRegistry(
		unit.AddColumn("conversation", "is_pinned", "BOOLEAN NOT NULL DEFAULT FALSE"),
		broken,
		unit.AddColumn("conversation", "is_archived", "BOOLEAN NOT NULL DEFAULT FALSE"),
	)
	require.NoError(t, err)

	r, closer, err := NewRunner(reg, fastSqlite(db))
	require.NoError(t, err)

	defer func() {
		assert.NoError(t, closer())
	}()

	records, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"add_column_conversation_is_pinned",
		"broken_detection",
		"add_column_conversation_is_archived",
	}, records.Names())

	assert.Equal(t, unit.Applied, records[0].Outcome)
	assert.Equal(t, unit.Failed, records[1].Outcome)
	assert.Error(t, records[1].Err)
	assert.Equal(t, unit.Applied, records[2].Outcome)

	assert.False(t, records.Ok())
}

func Test_FailedApplyIsRolledBackAndRunContinues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec("CREATE TABLE conversation (id INTEGER PRIMARY KEY);")
	require.NoError(t, err)

	halfway := unit.Raw(
		"add_pin_and_archive_flags",
		func(ctx context.Context, s unit.Schema) (bool, error) {
			return s.HasColumn(ctx, "conversation", "is_pinned")
		},
		"ALTER TABLE conversation ADD COLUMN is_pinned BOOLEAN NOT NULL DEFAULT FALSE",
		"DEFINITELY NOT VALID SQL",
	)

	reg, err := unit.NewRegistry(
		halfway,
		unit.AddColumn("conversation", "last_opened_at", "TIMESTAMP"),
	)
	require.NoError(t, err)

	r, closer, err := NewRunner(reg, fastSqlite(db))
	require.NoError(t, err)

	defer func() {
		assert.NoError(t, closer())
	}()

	records, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, unit.Failed, records[0].Outcome)
	assert.Equal(t, unit.Applied, records[1].Outcome)

	// the first statement of the failed unit must have been rolled back
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('conversation') WHERE name = 'is_pinned';").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// only the successful unit reaches the ledger
	entries, err := r.History(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "add_column_conversation_last_opened_at", entries[0].Name)
}

func Test_AmbiguousRenameIsReportedFailedNotResolved(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// an inconsistent prior state: both the old and the new column exist
	_, err := db.Exec("CREATE TABLE message (id INTEGER PRIMARY KEY, metadata TEXT, message_metadata TEXT);")
	require.NoError(t, err)

	reg, err := unit.NewRegistry(
		unit.RenameColumn("message", "metadata", "message_metadata"),
	)
	require.NoError(t, err)

	r, closer, err := NewRunner(reg, fastSqlite(db))
	require.NoError(t, err)

	defer func() {
		assert.NoError(t, closer())
	}()

	records, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, unit.Failed, records[0].Outcome)
	assert.True(t, errors.Is(records[0].Err, unit.ErrAmbiguousSchema))

	// both columns must still be there, untouched
	for _, column := range []string{"metadata", "message_metadata"} {
		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('message') WHERE name = ?;", column).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
}

func Test_CancellationBetweenUnitsAbortsTheRemainder(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := unit.Raw(
		"first",
		func(ctx context.Context, s unit.Schema) (bool, error) {
			cancel()
			return true, nil
		},
		"SELECT 1",
	)

	reg, err := unit.NewRegistry(
		first,
		unit.AddTable("never_created", "CREATE TABLE never_created (id INTEGER PRIMARY KEY);"),
	)
	require.NoError(t, err)

	r, closer, err := NewRunner(reg, fastSqlite(db))
	require.NoError(t, err)

	defer func() {
		assert.NoError(t, closer())
	}()

	records, err := r.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	require.Len(t, records, 1)
	assert.Equal(t, unit.Skipped, records[0].Outcome)

	var count int
	scanErr := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'never_created';").Scan(&count)
	require.NoError(t, scanErr)
	assert.Equal(t, 0, count)
}

func Test_ConnectionFailureAbortsBeforeAnyUnit(t *testing.T) {
	db, err := sqlx.Open("sqlite3", "file:/no/such/directory/evolve.db?mode=rw")
	require.NoError(t, err)

	defer func() {
		_ = db.Close()
	}()

	reg, err := unit.NewRegistry(
		unit.AddTable("conversation", "CREATE TABLE conversation (id INTEGER PRIMARY KEY);"),
	)
	require.NoError(t, err)

	r, closer, err := NewRunner(reg, UseSqlite(db.DB,
		WithSqliteMaxConnectionAttempts(1),
		WithSqliteConnectionTimeout(time.Second),
	))
	require.NoError(t, err)

	defer func() {
		_ = closer()
	}()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()

	records, runErr := r.Run(ctx)
	assert.Error(t, runErr)
	assert.Len(t, records, 0)
}

func Test_StatusReportsWithoutMutating(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec("CREATE TABLE conversation (id INTEGER PRIMARY KEY, is_pinned BOOLEAN NOT NULL DEFAULT FALSE);")
	require.NoError(t, err)

	reg, err := unit.NewRegistry(
		unit.AddColumn("conversation", "is_pinned", "BOOLEAN NOT NULL DEFAULT FALSE"),
		unit.AddColumn("conversation", "is_archived", "BOOLEAN NOT NULL DEFAULT FALSE"),
	)
	require.NoError(t, err)

	r, closer, err := NewRunner(reg, fastSqlite(db))
	require.NoError(t, err)

	defer func() {
		assert.NoError(t, closer())
	}()

	records, err := r.Status(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, unit.Skipped, records[0].Outcome)
	assert.Equal(t, unit.Pending, records[1].Outcome)

	// status must not have added the missing column
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('conversation') WHERE name = 'is_archived';").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
