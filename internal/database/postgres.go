package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ammar1510/alumni-chat/internal/models"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type PostgresDB struct {
	*sql.DB
}

func NewPostgresDB(ctx context.Context, connStr string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &PostgresDB{db}, nil
}

// Migrate creates the chat tables and indexes if they are missing.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *PostgresDB) Close() error {
	return db.DB.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// likePattern escapes LIKE wildcards in q and wraps it for a substring match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

const userColumns = `id, name, email, role, COALESCE(profile_picture, ''), created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.ProfilePicture, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (db *PostgresDB) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (db *PostgresDB) SearchUsers(ctx context.Context, query string, excludeID uuid.UUID, limit, offset int) ([]*models.User, int, error) {
	limit, offset = clampPage(limit, offset)
	pattern := likePattern(query)

	const where = `WHERE id <> $1 AND role <> 'admin' AND (name ILIKE $2 OR email ILIKE $2)`

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users `+where, excludeID, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users `+where+` ORDER BY name, id LIMIT NULLIF($3::int, 0) OFFSET $4`,
		excludeID, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

const connectionColumns = `id, requester_id, recipient_id, status, request_message, blocked_by,
	requested_at, responded_at, created_at, updated_at`

func scanConnection(row interface{ Scan(...any) error }) (*models.Connection, error) {
	var (
		c         models.Connection
		message   sql.NullString
		blockedBy uuid.NullUUID
		responded sql.NullTime
	)
	err := row.Scan(&c.ID, &c.RequesterID, &c.RecipientID, &c.Status, &message, &blockedBy,
		&c.RequestedAt, &responded, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if message.Valid {
		c.RequestMessage = &message.String
	}
	if blockedBy.Valid {
		c.BlockedBy = &blockedBy.UUID
	}
	if responded.Valid {
		c.RespondedAt = &responded.Time
	}
	return &c, nil
}

func (db *PostgresDB) CreateConnection(ctx context.Context, c *models.Connection) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO connections (`+connectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.RequesterID, c.RecipientID, c.Status, c.RequestMessage, nullUUID(c.BlockedBy),
		c.RequestedAt, c.RespondedAt, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConnectionExists
	}
	return err
}

func (db *PostgresDB) GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	c, err := scanConnection(db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrConnectionNotFound
	}
	return c, err
}

func (db *PostgresDB) FindConnectionBetween(ctx context.Context, a, b uuid.UUID) (*models.Connection, error) {
	c, err := scanConnection(db.QueryRowContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE (requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1)`,
		a, b))
	if err == sql.ErrNoRows {
		return nil, ErrConnectionNotFound
	}
	return c, err
}

func (db *PostgresDB) UpdateConnection(ctx context.Context, c *models.Connection) error {
	result, err := db.ExecContext(ctx, `
		UPDATE connections SET status = $1, blocked_by = $2, responded_at = $3, updated_at = $4
		WHERE id = $5`,
		c.Status, nullUUID(c.BlockedBy), c.RespondedAt, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrConnectionNotFound)
}

func (db *PostgresDB) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrConnectionNotFound)
}

func (db *PostgresDB) ListConnections(ctx context.Context, f ConnectionFilter) ([]*models.Connection, int, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	var side string
	switch f.Role {
	case RoleRequester:
		side = `requester_id = $1`
	case RoleRecipient:
		side = `recipient_id = $1`
	default:
		side = `(requester_id = $1 OR recipient_id = $1)`
	}
	where := `WHERE ` + side + ` AND ($2 = '' OR status = $2)`

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections `+where,
		f.UserID, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM connections `+where+
			` ORDER BY created_at DESC LIMIT NULLIF($3::int, 0) OFFSET $4`,
		f.UserID, string(f.Status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	conns := []*models.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan connection row: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return conns, total, nil
}

const conversationColumns = `c.id, c.user_a, c.user_b, c.last_message_content, c.last_message_sender,
	c.last_message_at, c.created_at, c.updated_at`

func scanConversation(row interface{ Scan(...any) error }) (*models.Conversation, error) {
	var (
		c      models.Conversation
		sender uuid.NullUUID
	)
	err := row.Scan(&c.ID, &c.Participants[0], &c.Participants[1], &c.LastMessage.Content, &sender,
		&c.LastMessage.Timestamp, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sender.Valid {
		c.LastMessage.SenderID = &sender.UUID
	}
	c.Archived = make(map[uuid.UUID]bool)
	c.LastReadBy = make(map[uuid.UUID]time.Time)
	return &c, nil
}

// loadMembers fills per-participant archive and read state.
func (db *PostgresDB) loadMembers(ctx context.Context, convs ...*models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Conversation, len(convs))
	ids := make([]uuid.UUID, 0, len(convs))
	for _, c := range convs {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT conversation_id, user_id, archived, last_read_at
		FROM conversation_members WHERE conversation_id = ANY($1::uuid[])`,
		pq.Array(uuidStrings(ids)))
	if err != nil {
		return fmt.Errorf("failed to query conversation members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			convID, userID uuid.UUID
			archived       bool
			lastRead       sql.NullTime
		)
		if err := rows.Scan(&convID, &userID, &archived, &lastRead); err != nil {
			return err
		}
		c := byID[convID]
		if archived {
			c.Archived[userID] = true
		}
		if lastRead.Valid {
			c.LastReadBy[userID] = lastRead.Time
		}
	}
	return rows.Err()
}

func (db *PostgresDB) CreateConversation(ctx context.Context, c *models.Conversation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, user_a, user_b, last_message_content, last_message_sender,
			last_message_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Participants[0], c.Participants[1], c.LastMessage.Content, nullUUID(c.LastMessage.SenderID),
		c.LastMessage.Timestamp, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConversationExists
	}
	if err != nil {
		return err
	}

	for _, p := range c.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`, c.ID, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *PostgresDB) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, err := scanConversation(db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, db.loadMembers(ctx, c)
}

func (db *PostgresDB) FindConversationByPair(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	pair := models.SortedPair(a, b)
	c, err := scanConversation(db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.user_a = $1 AND c.user_b = $2`,
		pair[0], pair[1]))
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, db.loadMembers(ctx, c)
}

func (db *PostgresDB) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error) {
	limit, offset = clampPage(limit, offset)

	const from = `FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.id AND m.user_id = $1
		WHERE NOT m.archived`

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+conversationColumns+` `+from+
			` ORDER BY c.last_message_at DESC LIMIT NULLIF($2::int, 0) OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	convs := []*models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := db.loadMembers(ctx, convs...); err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

func (db *PostgresDB) UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, last models.LastMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_content = $1, last_message_sender = $2, last_message_at = $3, updated_at = now()
		WHERE id = $4`,
		last.Content, nullUUID(last.SenderID), last.Timestamp, conversationID)
	if err != nil {
		return err
	}
	if err := expectRow(result, ErrConversationNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversation_members SET archived = false WHERE conversation_id = $1`, conversationID); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *PostgresDB) SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE conversation_members SET archived = $1 WHERE conversation_id = $2 AND user_id = $3`,
		archived, conversationID, userID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrConversationNotFound)
}

func (db *PostgresDB) SetLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE conversation_members SET last_read_at = $1 WHERE conversation_id = $2 AND user_id = $3`,
		at, conversationID, userID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrConversationNotFound)
}

const messageColumns = `id, conversation_id, sender_id, content, message_type, deleted, created_at, updated_at, client_id`

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	var (
		m        models.Message
		clientID sql.NullString
	)
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.MessageType,
		&m.Deleted, &m.CreatedAt, &m.UpdatedAt, &clientID)
	if err != nil {
		return nil, err
	}
	m.ClientID = clientID.String
	m.ReadBy = []models.ReadReceipt{}
	return &m, nil
}

// loadReceipts fills ReadBy for msgs in receipt order.
func (db *PostgresDB) loadReceipts(ctx context.Context, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Message, len(msgs))
	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT message_id, user_id, read_at FROM message_reads
		WHERE message_id = ANY($1::uuid[]) ORDER BY read_at`,
		pq.Array(uuidStrings(ids)))
	if err != nil {
		return fmt.Errorf("failed to query read receipts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msgID uuid.UUID
			r     models.ReadReceipt
		)
		if err := rows.Scan(&msgID, &r.UserID, &r.ReadAt); err != nil {
			return err
		}
		m := byID[msgID]
		m.ReadBy = append(m.ReadBy, r)
	}
	return rows.Err()
}

func (db *PostgresDB) queryMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := []*models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.loadReceipts(ctx, msgs...); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (db *PostgresDB) CreateMessage(ctx context.Context, m *models.Message) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	clientID := sql.NullString{String: m.ClientID, Valid: m.ClientID != ""}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.MessageType, m.Deleted, m.CreatedAt, m.UpdatedAt, clientID)
	if isUniqueViolation(err) {
		return ErrMessageExists
	}
	if err != nil {
		return err
	}

	for _, r := range m.ReadBy {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)`,
			m.ID, r.UserID, r.ReadAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *PostgresDB) FindMessageByClientID(ctx context.Context, senderID uuid.UUID, clientID string) (*models.Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE sender_id = $1 AND client_id = $2`, senderID, clientID))
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, db.loadReceipts(ctx, m)
}

func (db *PostgresDB) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, db.loadReceipts(ctx, m)
}

func (db *PostgresDB) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*models.Message, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND NOT deleted`,
		conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	msgs, err := db.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1 AND NOT deleted
		ORDER BY created_at DESC, id DESC LIMIT NULLIF($2::int, 0) OFFSET $3`,
		conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (db *PostgresDB) AddReadReceipt(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT id, $2, $3 FROM messages WHERE id = $1
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID, userID, at)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		var exists bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`, messageID).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, ErrMessageNotFound
		}
	}
	return n > 0, nil
}

func (db *PostgresDB) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT id, $2, $3 FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT deleted
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		conversationID, readerID, at)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (db *PostgresDB) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id <> $2 AND NOT m.deleted
		  AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2)`,
		conversationID, userID).Scan(&n)
	return n, err
}

func (db *PostgresDB) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx,
		`UPDATE messages SET deleted = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrMessageNotFound)
}

func (db *PostgresDB) SearchMessages(ctx context.Context, userID uuid.UUID, query string, limit, offset int) ([]*models.Message, int, error) {
	limit, offset = clampPage(limit, offset)
	pattern := likePattern(query)

	const where = `WHERE NOT m.deleted AND m.content ILIKE $2
		AND m.conversation_id IN (SELECT conversation_id FROM conversation_members WHERE user_id = $1)`

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages m `+where, userID, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	msgs, err := db.queryMessages(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.message_type, m.deleted, m.created_at, m.updated_at,
			m.client_id
		FROM messages m `+where+`
		ORDER BY m.created_at DESC LIMIT NULLIF($3::int, 0) OFFSET $4`,
		userID, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func expectRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
