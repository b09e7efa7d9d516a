package store

import (
	"context"
	"errors"
	"time"

	"PSocial/module/chat/model"
	"PSocial/tools/errs"
	"PSocial/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const resolveRetries = 3

// EnsureIndexes creates the indexes the stores rely on. The unique pair_key
// index is what makes ResolvePair safe under concurrency.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	convIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pair_key"),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_participant_activity"),
		},
	}
	if _, err := db.Collection(model.ConversationTableName).Indexes().CreateMany(ctx, convIdx); err != nil {
		return errs.ErrStorage.Cause(err, "create conversation indexes")
	}

	msgIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_conv_created"),
		},
	}
	if _, err := db.Collection(model.MessageTableName).Indexes().CreateMany(ctx, msgIdx); err != nil {
		return errs.ErrStorage.Cause(err, "create message indexes")
	}
	return nil
}

// DBProvider hands out the current database. service/mgo.Manager swaps its
// client on reconnect, so stores ask for the handle on every call.
type DBProvider interface {
	DB() (*mongo.Database, error)
}

// StaticDB serves a fixed database handle.
type StaticDB struct{ *mongo.Database }

func (s StaticDB) DB() (*mongo.Database, error) { return s.Database, nil }

func collection(p DBProvider, name string) (*mongo.Collection, error) {
	db, err := p.DB()
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// Mongo time precision is milliseconds.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// MongoConversations implements ConversationStore on the conversations
// collection.
type MongoConversations struct {
	db    DBProvider
	now   func() time.Time
	newID func() string
}

func NewMongoConversations(db DBProvider) *MongoConversations {
	return &MongoConversations{
		db:    db,
		now:   mongoNow,
		newID: ids.GenerateString,
	}
}

func (s *MongoConversations) coll() (*mongo.Collection, error) {
	c, err := collection(s.db, model.ConversationTableName)
	if err != nil {
		return nil, errs.ErrStorage.Cause(err, "conversations collection")
	}
	return c, nil
}

func (s *MongoConversations) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	coll, err := s.coll()
	if err != nil {
		return nil, err
	}
	var c model.Conversation
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("conversation not found", "id", id)
	}
	if err != nil {
		return nil, errs.ErrStorage.Cause(err, "find conversation", "id", id)
	}
	return &c, nil
}

// ResolvePair upserts on pair_key with $setOnInsert. Two racing upserts can
// both miss and one then fails on the unique index; the retry finds the
// winner's document.
func (s *MongoConversations) ResolvePair(ctx context.Context, a, b string) (*model.Conversation, bool, error) {
	key := model.PairKey(a, b)
	coll, err := s.coll()
	if err != nil {
		return nil, false, err
	}
	var lastErr error
	for i := 0; i < resolveRetries; i++ {
		now := s.now()
		newID := s.newID()
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":          newID,
				"participants": model.SortedPair(a, b),
				"pair_key":     key,
				"created_at":   now,
				"updated_at":   now,
			},
		}
		opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

		var c model.Conversation
		err := coll.FindOneAndUpdate(ctx, bson.M{"pair_key": key}, update, opts).Decode(&c)
		if err == nil {
			return &c, c.ID == newID, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, errs.ErrStorage.Cause(err, "resolve conversation", "pair", key)
		}
		lastErr = err
	}
	return nil, false, errs.ErrStorage.Cause(lastErr, "resolve conversation retries exhausted", "pair", key)
}

func (s *MongoConversations) UpdateSummary(ctx context.Context, conversationID string, last model.LastMessage) error {
	filter := bson.M{
		"_id": conversationID,
		"$or": bson.A{
			bson.M{"last_message": nil},
			bson.M{"last_message.at": bson.M{"$lte": last.At}},
		},
	}
	update := bson.M{
		"$set": bson.M{"last_message": last},
		"$max": bson.M{"updated_at": last.At},
	}
	coll, err := s.coll()
	if err != nil {
		return err
	}
	if _, err := coll.UpdateOne(ctx, filter, update); err != nil {
		return errs.ErrStorage.Cause(err, "update summary", "id", conversationID)
	}
	return nil
}

func (s *MongoConversations) ListByParticipant(ctx context.Context, userID string) ([]*model.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	coll, err := s.coll()
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, errs.ErrStorage.Cause(err, "list conversations", "user", userID)
	}
	out := make([]*model.Conversation, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrStorage.Cause(err, "decode conversations", "user", userID)
	}
	return out, nil
}

// MongoMessages implements MessageStore on the messages collection.
type MongoMessages struct {
	db    DBProvider
	now   func() time.Time
	newID func() string
}

func NewMongoMessages(db DBProvider) *MongoMessages {
	return &MongoMessages{
		db:    db,
		now:   mongoNow,
		newID: ids.GenerateString,
	}
}

func (s *MongoMessages) coll() (*mongo.Collection, error) {
	c, err := collection(s.db, model.MessageTableName)
	if err != nil {
		return nil, errs.ErrStorage.Cause(err, "messages collection")
	}
	return c, nil
}

func (s *MongoMessages) Create(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if m.ReadBy == nil {
		m.ReadBy = []string{}
	}
	coll, err := s.coll()
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, m); err != nil {
		return errs.ErrStorage.Cause(err, "create message", "conversation", m.ConversationID)
	}
	return nil
}

func (s *MongoMessages) ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	coll, err := s.coll()
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, errs.ErrStorage.Cause(err, "list messages", "conversation", conversationID)
	}
	out := make([]*model.Message, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrStorage.Cause(err, "decode messages", "conversation", conversationID)
	}
	return out, nil
}

// MongoUsers reads profiles from the users collection.
type MongoUsers struct {
	db DBProvider
}

func NewMongoUsers(db DBProvider) *MongoUsers {
	return &MongoUsers{db: db}
}

// userDoc is the users collection as the account service writes it: ObjectId
// keys for most accounts and the avatar under profilePhoto.
type userDoc struct {
	ID           any    `bson:"_id"`
	Name         string `bson:"name"`
	ProfilePhoto string `bson:"profilePhoto"`
}

// userKeys matches both ObjectId and plain string keys for every id.
func userKeys(userIDs []string) []any {
	keys := make([]any, 0, len(userIDs)*2)
	for _, id := range userIDs {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			keys = append(keys, oid)
		}
		keys = append(keys, id)
	}
	return keys
}

func docID(v any) (string, bool) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex(), true
	case string:
		return id, true
	}
	return "", false
}

func (s *MongoUsers) FindUsers(ctx context.Context, userIDs []string) (map[string]model.UserProfile, error) {
	out := make(map[string]model.UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "profilePhoto": 1})
	coll, err := collection(s.db, model.UserTableName)
	if err != nil {
		return nil, errs.ErrEnrichment.Cause(err, "users collection")
	}
	cur, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": userKeys(userIDs)}}, opts)
	if err != nil {
		return nil, errs.ErrEnrichment.Cause(err, "find users")
	}
	var list []userDoc
	if err := cur.All(ctx, &list); err != nil {
		return nil, errs.ErrEnrichment.Cause(err, "decode users")
	}
	for _, d := range list {
		id, ok := docID(d.ID)
		if !ok {
			continue
		}
		out[id] = model.UserProfile{ID: id, Name: d.Name, Avatar: d.ProfilePhoto}
	}
	return out, nil
}
