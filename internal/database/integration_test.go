package database

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/alumni-chat/internal/models"
)

func TestPostgresStore(t *testing.T) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := NewPostgresDB(ctx, connStr)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	_, err = db.ExecContext(ctx, `TRUNCATE message_reads, messages, conversation_members, conversations, connections, users CASCADE`)
	require.NoError(t, err)

	runStoreSuite(t, db, func(t *testing.T, u *models.User) {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, name, email, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
			u.ID, u.Name, u.Email, u.Role, u.CreatedAt)
		require.NoError(t, err)
	})
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	dbName := "alumni_chat_test_" + uuid.NewString()[:8]
	db, err := NewMongoDB(ctx, uri, dbName)
	require.NoError(t, err)
	defer func() {
		db.client.Database(dbName).Drop(context.Background())
		db.Close()
	}()

	runStoreSuite(t, db, func(t *testing.T, u *models.User) {
		_, err := db.users.InsertOne(ctx, userDoc{
			ID: u.ID.String(), Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt,
		})
		require.NoError(t, err)
	})
}
