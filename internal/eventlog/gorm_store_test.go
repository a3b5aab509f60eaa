package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "events.db")},
	}, database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate())
	return NewGormStore(db.Gorm())
}

func TestGormStore_EraseThenDrawKeepsInsertionOrder(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	steps := []Event{
		{RoomID: "ABCXYZ", UserID: "alice", Kind: KindShapeCreate, ShapeID: "s1", Payload: json.RawMessage(`{"id":"s1","type":"rect"}`)},
		{RoomID: "other", UserID: "bob", Kind: KindChat, Payload: json.RawMessage(`"hi"`)},
		{RoomID: "ABCXYZ", UserID: "alice", Kind: KindShapeDelete, ShapeID: "s1", Payload: json.RawMessage(`{"shapeId":"s1"}`)},
		{RoomID: "ABCXYZ", UserID: "alice", Kind: KindShapeCreate, ShapeID: "s1", Payload: json.RawMessage(`{"id":"s1","type":"circle"}`)},
	}
	for _, ev := range steps {
		stored, err := store.AppendEvent(ctx, ev)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ID)
		assert.NotZero(t, stored.Seq)
	}

	events, err := store.ListEvents(ctx, "ABCXYZ")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, []Kind{KindShapeCreate, KindShapeDelete, KindShapeCreate},
		[]Kind{events[0].Kind, events[1].Kind, events[2].Kind})
	assert.Less(t, events[1].Seq, events[2].Seq)
	assert.JSONEq(t, `{"id":"s1","type":"circle"}`, string(events[2].Payload))
	assert.Equal(t, "s1", events[1].ShapeID)
	assert.WithinDuration(t, time.Now(), events[0].CreatedAt, time.Minute)

	empty, err := store.ListEvents(ctx, "nobody-here")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormStore_WithWriter(t *testing.T) {
	store := newSQLiteStore(t)
	w := NewWriter(store, WriterOptions{QueueSize: 64})
	w.Start()

	for i := 0; i < 20; i++ {
		require.NoError(t, w.Append(chatEvent("r1", i)))
	}
	require.NoError(t, w.Close(context.Background()))

	events, err := store.ListEvents(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, events, 20)
	assert.JSONEq(t, `"message 19"`, string(events[19].Payload))
}

func TestGormStore_InsertFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	db, err := database.OpenDialector(postgres.New(postgres.Config{Conn: sqlDB}), config.DatabaseTypePostgres, database.Options{})
	require.NoError(t, err)
	store := NewGormStore(db.Gorm())

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "room_events"`).WillReturnError(errors.New("permission denied for table room_events"))
	mock.ExpectRollback()

	_, err = store.AppendEvent(context.Background(), Event{
		RoomID: "r1", UserID: "u1", Kind: KindChat, Payload: json.RawMessage(`"x"`),
	})
	assert.ErrorContains(t, err, "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet(), "permanent errors are not retried")
}

func TestGormStore_RetriesTransientInsertFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	db, err := database.OpenDialector(postgres.New(postgres.Config{Conn: sqlDB}), config.DatabaseTypePostgres, database.Options{})
	require.NoError(t, err)
	store := NewGormStore(db.Gorm()).WithRetry(database.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "room_events"`).WillReturnError(errors.New("read: connection reset by peer"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "room_events"`).WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))
	mock.ExpectCommit()

	stored, err := store.AppendEvent(context.Background(), Event{
		RoomID: "r1", UserID: "u1", Kind: KindChat, Payload: json.RawMessage(`"x"`),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), stored.Seq)
	assert.NotEmpty(t, stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	db, err := database.OpenDialector(postgres.New(postgres.Config{Conn: sqlDB}), config.DatabaseTypePostgres, database.Options{})
	require.NoError(t, err)
	store := NewGormStore(db.Gorm())

	mock.ExpectQuery(`SELECT \* FROM "room_events"`).WillReturnError(errors.New("timeout"))

	_, err = store.ListEvents(context.Background(), "r1")
	assert.ErrorContains(t, err, "failed to list events for room r1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
