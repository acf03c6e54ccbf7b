package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ammar1510/alumni-chat/internal/models"
)

// MongoDB stores each aggregate as one document, with receipts embedded
// in their message and archive state embedded in the conversation.
type MongoDB struct {
	client        *mongo.Client
	users         *mongo.Collection
	connections   *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
}

type userDoc struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	Email          string    `bson:"email"`
	Role           string    `bson:"role"`
	ProfilePicture string    `bson:"profile_picture,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

type connectionDoc struct {
	ID             string     `bson:"_id"`
	RequesterID    string     `bson:"requester_id"`
	RecipientID    string     `bson:"recipient_id"`
	PairKey        string     `bson:"pair_key"`
	Status         string     `bson:"status"`
	RequestMessage *string    `bson:"request_message,omitempty"`
	BlockedBy      *string    `bson:"blocked_by,omitempty"`
	RequestedAt    time.Time  `bson:"requested_at"`
	RespondedAt    *time.Time `bson:"responded_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

type lastMessageDoc struct {
	Content   string    `bson:"content"`
	SenderID  *string   `bson:"sender_id,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

type conversationDoc struct {
	ID           string               `bson:"_id"`
	Participants []string             `bson:"participants"`
	PairKey      string               `bson:"pair_key"`
	LastMessage  lastMessageDoc       `bson:"last_message"`
	ArchivedBy   []string             `bson:"archived_by"`
	LastReadBy   map[string]time.Time `bson:"last_read_by"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

type readDoc struct {
	UserID string    `bson:"user_id"`
	ReadAt time.Time `bson:"read_at"`
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	SenderID       string    `bson:"sender_id"`
	Content        string    `bson:"content"`
	MessageType    string    `bson:"message_type"`
	ReadBy         []readDoc `bson:"read_by"`
	Deleted        bool      `bson:"deleted"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
	ClientID       string    `bson:"client_id,omitempty"`
}

func NewMongoDB(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	m := &MongoDB{
		client:        client,
		users:         db.Collection("users"),
		connections:   db.Collection("connections"),
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
	if err := m.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (db *MongoDB) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{db.connections, mongo.IndexModel{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: unique}},
		{db.connections, mongo.IndexModel{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "status", Value: 1}}}},
		{db.connections, mongo.IndexModel{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "status", Value: 1}}}},
		{db.conversations, mongo.IndexModel{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: unique}},
		{db.conversations, mongo.IndexModel{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message.timestamp", Value: -1}}}},
		{db.messages, mongo.IndexModel{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "deleted", Value: 1}, {Key: "created_at", Value: -1}}}},
		{db.messages, mongo.IndexModel{
			Keys:    bson.D{{Key: "sender_id", Value: 1}, {Key: "client_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"client_id": bson.M{"$exists": true}}),
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

func (db *MongoDB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, readpref.Primary())
}

func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

func docID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func optString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func optID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := docID(*s)
	return &id
}

// containsPattern is a case-insensitive literal substring match.
func containsPattern(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(strings.TrimSpace(q)), "$options": "i"}
}

func findOptions(sort bson.D, limit, offset int) *options.FindOptions {
	opts := options.Find().SetSort(sort).SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func (d *userDoc) model() *models.User {
	return &models.User{
		ID:             docID(d.ID),
		Name:           d.Name,
		Email:          d.Email,
		Role:           d.Role,
		ProfilePicture: d.ProfilePicture,
		CreatedAt:      d.CreatedAt,
	}
}

func (db *MongoDB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc userDoc
	err := db.users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (db *MongoDB) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := db.users.Find(ctx, bson.M{"_id": bson.M{"$in": uuidStrings(ids)}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		u := docs[i].model()
		out[u.ID] = u
	}
	return out, nil
}

func (db *MongoDB) SearchUsers(ctx context.Context, query string, excludeID uuid.UUID, limit, offset int) ([]*models.User, int, error) {
	limit, offset = clampPage(limit, offset)
	pattern := containsPattern(query)
	filter := bson.M{
		"_id":  bson.M{"$ne": excludeID.String()},
		"role": bson.M{"$ne": "admin"},
		"$or":  bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}},
	}

	total, err := db.users.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := db.users.Find(ctx, filter, findOptions(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	users := make([]*models.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].model())
	}
	return users, int(total), nil
}

func newConnectionDoc(c *models.Connection) *connectionDoc {
	return &connectionDoc{
		ID:             c.ID.String(),
		RequesterID:    c.RequesterID.String(),
		RecipientID:    c.RecipientID.String(),
		PairKey:        models.PairKey(c.RequesterID, c.RecipientID),
		Status:         string(c.Status),
		RequestMessage: c.RequestMessage,
		BlockedBy:      optString(c.BlockedBy),
		RequestedAt:    c.RequestedAt,
		RespondedAt:    c.RespondedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (d *connectionDoc) model() *models.Connection {
	return &models.Connection{
		ID:             docID(d.ID),
		RequesterID:    docID(d.RequesterID),
		RecipientID:    docID(d.RecipientID),
		Status:         models.ConnectionStatus(d.Status),
		RequestMessage: d.RequestMessage,
		BlockedBy:      optID(d.BlockedBy),
		RequestedAt:    d.RequestedAt,
		RespondedAt:    d.RespondedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (db *MongoDB) findConnection(ctx context.Context, filter bson.M) (*models.Connection, error) {
	var doc connectionDoc
	err := db.connections.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (db *MongoDB) CreateConnection(ctx context.Context, c *models.Connection) error {
	_, err := db.connections.InsertOne(ctx, newConnectionDoc(c))
	if mongo.IsDuplicateKeyError(err) {
		return ErrConnectionExists
	}
	return err
}

func (db *MongoDB) GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	return db.findConnection(ctx, bson.M{"_id": id.String()})
}

func (db *MongoDB) FindConnectionBetween(ctx context.Context, a, b uuid.UUID) (*models.Connection, error) {
	return db.findConnection(ctx, bson.M{"pair_key": models.PairKey(a, b)})
}

func (db *MongoDB) UpdateConnection(ctx context.Context, c *models.Connection) error {
	set := bson.M{"status": string(c.Status), "updated_at": c.UpdatedAt}
	unset := bson.M{}
	if c.BlockedBy != nil {
		set["blocked_by"] = c.BlockedBy.String()
	} else {
		unset["blocked_by"] = ""
	}
	if c.RespondedAt != nil {
		set["responded_at"] = *c.RespondedAt
	} else {
		unset["responded_at"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := db.connections.UpdateOne(ctx, bson.M{"_id": c.ID.String()}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func (db *MongoDB) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	result, err := db.connections.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func (db *MongoDB) ListConnections(ctx context.Context, f ConnectionFilter) ([]*models.Connection, int, error) {
	limit, offset := clampPage(f.Limit, f.Offset)
	user := f.UserID.String()

	filter := bson.M{}
	switch f.Role {
	case RoleRequester:
		filter["requester_id"] = user
	case RoleRecipient:
		filter["recipient_id"] = user
	default:
		filter["$or"] = bson.A{bson.M{"requester_id": user}, bson.M{"recipient_id": user}}
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	total, err := db.connections.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := db.connections.Find(ctx, filter, findOptions(bson.D{{Key: "created_at", Value: -1}}, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	var docs []connectionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	conns := make([]*models.Connection, 0, len(docs))
	for i := range docs {
		conns = append(conns, docs[i].model())
	}
	return conns, int(total), nil
}

func newConversationDoc(c *models.Conversation) *conversationDoc {
	doc := &conversationDoc{
		ID:           c.ID.String(),
		Participants: []string{c.Participants[0].String(), c.Participants[1].String()},
		PairKey:      models.PairKey(c.Participants[0], c.Participants[1]),
		LastMessage: lastMessageDoc{
			Content:   c.LastMessage.Content,
			SenderID:  optString(c.LastMessage.SenderID),
			Timestamp: c.LastMessage.Timestamp,
		},
		ArchivedBy: []string{},
		LastReadBy: make(map[string]time.Time, len(c.LastReadBy)),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	for id, archived := range c.Archived {
		if archived {
			doc.ArchivedBy = append(doc.ArchivedBy, id.String())
		}
	}
	for id, at := range c.LastReadBy {
		doc.LastReadBy[id.String()] = at
	}
	return doc
}

func (d *conversationDoc) model() *models.Conversation {
	c := &models.Conversation{
		ID: docID(d.ID),
		LastMessage: models.LastMessage{
			Content:   d.LastMessage.Content,
			SenderID:  optID(d.LastMessage.SenderID),
			Timestamp: d.LastMessage.Timestamp,
		},
		Archived:   make(map[uuid.UUID]bool, len(d.ArchivedBy)),
		LastReadBy: make(map[uuid.UUID]time.Time, len(d.LastReadBy)),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if len(d.Participants) == 2 {
		c.Participants = models.SortedPair(docID(d.Participants[0]), docID(d.Participants[1]))
	}
	for _, id := range d.ArchivedBy {
		c.Archived[docID(id)] = true
	}
	for id, at := range d.LastReadBy {
		c.LastReadBy[docID(id)] = at
	}
	return c
}

func (db *MongoDB) findConversation(ctx context.Context, filter bson.M) (*models.Conversation, error) {
	var doc conversationDoc
	err := db.conversations.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (db *MongoDB) CreateConversation(ctx context.Context, c *models.Conversation) error {
	_, err := db.conversations.InsertOne(ctx, newConversationDoc(c))
	if mongo.IsDuplicateKeyError(err) {
		return ErrConversationExists
	}
	return err
}

func (db *MongoDB) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return db.findConversation(ctx, bson.M{"_id": id.String()})
}

func (db *MongoDB) FindConversationByPair(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	return db.findConversation(ctx, bson.M{"pair_key": models.PairKey(a, b)})
}

func (db *MongoDB) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error) {
	limit, offset = clampPage(limit, offset)
	user := userID.String()
	filter := bson.M{
		"participants": user,
		"archived_by":  bson.M{"$ne": user},
	}

	total, err := db.conversations.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := db.conversations.Find(ctx, filter,
		findOptions(bson.D{{Key: "last_message.timestamp", Value: -1}}, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	convs := make([]*models.Conversation, 0, len(docs))
	for i := range docs {
		convs = append(convs, docs[i].model())
	}
	return convs, int(total), nil
}

func (db *MongoDB) updateConversation(ctx context.Context, id uuid.UUID, update bson.M) error {
	result, err := db.conversations.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (db *MongoDB) UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, last models.LastMessage) error {
	return db.updateConversation(ctx, conversationID, bson.M{"$set": bson.M{
		"last_message": lastMessageDoc{
			Content:   last.Content,
			SenderID:  optString(last.SenderID),
			Timestamp: last.Timestamp,
		},
		"archived_by": []string{},
		"updated_at":  time.Now().UTC(),
	}})
}

func (db *MongoDB) SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	op := "$pull"
	if archived {
		op = "$addToSet"
	}
	return db.updateConversation(ctx, conversationID, bson.M{
		op:     bson.M{"archived_by": userID.String()},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
}

func (db *MongoDB) SetLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	return db.updateConversation(ctx, conversationID, bson.M{
		"$set": bson.M{"last_read_by." + userID.String(): at},
	})
}

func newMessageDoc(m *models.Message) *messageDoc {
	doc := &messageDoc{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Content:        m.Content,
		MessageType:    string(m.MessageType),
		ReadBy:         make([]readDoc, 0, len(m.ReadBy)),
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		ClientID:       m.ClientID,
	}
	for _, r := range m.ReadBy {
		doc.ReadBy = append(doc.ReadBy, readDoc{UserID: r.UserID.String(), ReadAt: r.ReadAt})
	}
	return doc
}

func (d *messageDoc) model() *models.Message {
	m := &models.Message{
		ID:             docID(d.ID),
		ConversationID: docID(d.ConversationID),
		SenderID:       docID(d.SenderID),
		Content:        d.Content,
		MessageType:    models.MessageType(d.MessageType),
		ReadBy:         make([]models.ReadReceipt, 0, len(d.ReadBy)),
		Deleted:        d.Deleted,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		ClientID:       d.ClientID,
	}
	for _, r := range d.ReadBy {
		m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: docID(r.UserID), ReadAt: r.ReadAt})
	}
	return m
}

func (db *MongoDB) findMessages(ctx context.Context, filter bson.M, limit, offset int) ([]*models.Message, int, error) {
	total, err := db.messages.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := db.messages.Find(ctx, filter,
		findOptions(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	msgs := make([]*models.Message, 0, len(docs))
	for i := range docs {
		msgs = append(msgs, docs[i].model())
	}
	return msgs, int(total), nil
}

func (db *MongoDB) CreateMessage(ctx context.Context, m *models.Message) error {
	_, err := db.messages.InsertOne(ctx, newMessageDoc(m))
	if mongo.IsDuplicateKeyError(err) {
		return ErrMessageExists
	}
	return err
}

func (db *MongoDB) FindMessageByClientID(ctx context.Context, senderID uuid.UUID, clientID string) (*models.Message, error) {
	var doc messageDoc
	err := db.messages.FindOne(ctx, bson.M{"sender_id": senderID.String(), "client_id": clientID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (db *MongoDB) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var doc messageDoc
	err := db.messages.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (db *MongoDB) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*models.Message, int, error) {
	limit, offset = clampPage(limit, offset)
	return db.findMessages(ctx, bson.M{
		"conversation_id": conversationID.String(),
		"deleted":         false,
	}, limit, offset)
}

func (db *MongoDB) AddReadReceipt(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	user := userID.String()
	result, err := db.messages.UpdateOne(ctx,
		bson.M{"_id": messageID.String(), "read_by.user_id": bson.M{"$ne": user}},
		bson.M{"$push": bson.M{"read_by": readDoc{UserID: user, ReadAt: at}}})
	if err != nil {
		return false, err
	}
	if result.ModifiedCount > 0 {
		return true, nil
	}
	n, err := db.messages.CountDocuments(ctx, bson.M{"_id": messageID.String()})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrMessageNotFound
	}
	return false, nil
}

func unreadFilter(conversationID, userID uuid.UUID) bson.M {
	user := userID.String()
	return bson.M{
		"conversation_id": conversationID.String(),
		"sender_id":       bson.M{"$ne": user},
		"deleted":         false,
		"read_by.user_id": bson.M{"$ne": user},
	}
}

func (db *MongoDB) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error) {
	result, err := db.messages.UpdateMany(ctx, unreadFilter(conversationID, readerID),
		bson.M{"$push": bson.M{"read_by": readDoc{UserID: readerID.String(), ReadAt: at}}})
	if err != nil {
		return 0, err
	}
	return int(result.ModifiedCount), nil
}

func (db *MongoDB) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	n, err := db.messages.CountDocuments(ctx, unreadFilter(conversationID, userID))
	return int(n), err
}

func (db *MongoDB) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	result, err := db.messages.UpdateOne(ctx, bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (db *MongoDB) SearchMessages(ctx context.Context, userID uuid.UUID, query string, limit, offset int) ([]*models.Message, int, error) {
	limit, offset = clampPage(limit, offset)

	ids, err := db.conversations.Distinct(ctx, "_id", bson.M{"participants": userID.String()})
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []*models.Message{}, 0, nil
	}
	return db.findMessages(ctx, bson.M{
		"conversation_id": bson.M{"$in": ids},
		"deleted":         false,
		"content":         containsPattern(query),
	}, limit, offset)
}
