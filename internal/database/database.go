package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")

	// ErrConnectionExists is returned when any connection already links the pair,
	// in either direction.
	ErrConnectionExists = errors.New("connection already exists")
	// ErrConversationExists is returned when the participant pair already has a thread.
	ErrConversationExists = errors.New("conversation already exists")
	// ErrMessageExists is returned when the sender already stored a message
	// under the same client id.
	ErrMessageExists = errors.New("message already exists")
)

// UserDirectory is the read-only view of the profile service's users.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)
	// SearchUsers matches name or email case-insensitively, skipping
	// excludeID and admin accounts.
	SearchUsers(ctx context.Context, query string, excludeID uuid.UUID, limit, offset int) ([]*models.User, int, error)
}

// ConnectionRole narrows ListConnections to one side of the relationship.
type ConnectionRole int

const (
	RoleAny ConnectionRole = iota
	RoleRequester
	RoleRecipient
)

// ConnectionFilter selects connections of one user. Limit 0 means no limit.
type ConnectionFilter struct {
	UserID uuid.UUID
	Role   ConnectionRole
	Status models.ConnectionStatus
	Limit  int
	Offset int
}

type ConnectionStore interface {
	// CreateConnection inserts c unless the unordered pair already has a
	// connection, in which case ErrConnectionExists is returned.
	CreateConnection(ctx context.Context, c *models.Connection) error
	GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	FindConnectionBetween(ctx context.Context, a, b uuid.UUID) (*models.Connection, error)
	// UpdateConnection persists status, blockedBy and respondedAt.
	UpdateConnection(ctx context.Context, c *models.Connection) error
	DeleteConnection(ctx context.Context, id uuid.UUID) error
	// ListConnections returns matches newest first plus the unpaginated total.
	ListConnections(ctx context.Context, f ConnectionFilter) ([]*models.Connection, int, error)
}

type ConversationStore interface {
	// CreateConversation inserts c unless the pair already has a thread,
	// in which case ErrConversationExists is returned.
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindConversationByPair(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error)
	// ListConversations returns threads of userID not archived by them,
	// most recent activity first, plus the unpaginated total.
	ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error)
	// UpdateLastMessage stores the preview and clears every archive flag.
	UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, last models.LastMessage) error
	SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error
	SetLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
}

type MessageStore interface {
	// CreateMessage stores m together with its read receipts in one write.
	// A non-empty ClientID is unique per sender (ErrMessageExists).
	CreateMessage(ctx context.Context, m *models.Message) error
	// GetMessageByID also returns soft-deleted messages.
	GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// FindMessageByClientID returns senderID's message stored under
	// clientID, or ErrMessageNotFound.
	FindMessageByClientID(ctx context.Context, senderID uuid.UUID, clientID string) (*models.Message, error)
	// ListMessages returns non-deleted messages newest first plus the total.
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*models.Message, int, error)
	// AddReadReceipt appends a receipt unless userID already has one and
	// reports whether it was added.
	AddReadReceipt(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error)
	// MarkConversationRead adds receipts for every visible message not sent
	// by readerID and returns how many were added.
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error)
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
	SoftDeleteMessage(ctx context.Context, id uuid.UUID) error
	// SearchMessages matches content case-insensitively across the
	// conversations userID participates in, newest first.
	SearchMessages(ctx context.Context, userID uuid.UUID, query string, limit, offset int) ([]*models.Message, int, error)
}

// DBInterface is everything the chat core needs from persistence.
type DBInterface interface {
	UserDirectory
	ConnectionStore
	ConversationStore
	MessageStore

	Ping(ctx context.Context) error
	Close() error
}

type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgres"
	Mongo      DatabaseType = "mongo"
	Memory     DatabaseType = "memory"
)

// NewDatabase opens the backend selected by dbType. dbName is only used
// by MongoDB.
func NewDatabase(ctx context.Context, dbType DatabaseType, connStr, dbName string) (DBInterface, error) {
	switch dbType {
	case PostgreSQL:
		db, err := NewPostgresDB(ctx, connStr)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return db, nil
	case Mongo:
		return NewMongoDB(ctx, connStr, dbName)
	case Memory:
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

func clampPage(limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	return limit, offset
}
