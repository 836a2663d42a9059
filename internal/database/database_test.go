package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videovault/internal/domain/media"
	"videovault/internal/domain/user"
)

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "videovault.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", sqliteDSN(""))
	assert.Equal(t, "file:x?mode=memory&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "a.db?_pragma=journal_mode(WAL)", sqliteDSN("a.db?_pragma=journal_mode(WAL)"))
}

func TestConnectAndMigrate(t *testing.T) {
	db, err := Connect(":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	ctx := context.Background()
	users := user.NewRepository(db)
	u := &user.User{Username: "ana", Email: "ana@example.com", PasswordHash: "x", Role: user.RoleEditor}
	require.NoError(t, users.Create(ctx, u))

	rec := &media.Record{ID: "r1", OwnerID: u.ID, Title: "t", Filename: "f", OriginalName: "o", FilePath: "p", MimeType: "video/mp4", ProcessingState: media.StateProcessing, SensitivityState: media.SensitivityPending}
	require.NoError(t, media.NewRepository(db).Create(ctx, rec))

	got, err := media.NewRepository(db).GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "unknown", got.Resolution)
}
