package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore performs conversation DB operations.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using the provided collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// PairKey is the deterministic identity of a two-party conversation:
// the participant ids sorted lexically and joined with '|'. The chats
// collection carries a unique index on it, so two users can never end
// up with two conversations no matter how creation calls interleave.
func PairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// FindOrCreate returns the conversation between self and other,
// creating it if none exists. Creation is an upsert keyed on the pair
// key: a lost race simply returns the document the winner inserted,
// unmodified. On insert, the initiating user's read watermark is set to
// now and the other participant stays unmapped (they have never read).
func (s *ChatsStore) FindOrCreate(ctx context.Context, selfID, selfEmail, otherID, otherEmail string) (*Chat, error) {
	now := time.Now().UTC()
	insert := bson.M{
		"pair_key":           PairKey(selfID, otherID),
		"participants":       []string{selfID, otherID},
		"participant_emails": []string{selfEmail, otherEmail},
		"last_read_by":       bson.M{selfID: now},
		"created_at":         now,
		"updated_at":         now,
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var chat Chat
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"pair_key": PairKey(selfID, otherID)},
		bson.M{"$setOnInsert": insert},
		opts,
	).Decode(&chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// Get loads one conversation by id.
func (s *ChatsStore) Get(ctx context.Context, id bson.ObjectID) (*Chat, error) {
	var chat Chat
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// ForUser returns every conversation the user participates in, most
// recently updated first. This is also the query the chat-list live
// subscription re-runs on every change.
func (s *ChatsStore) ForUser(ctx context.Context, userID string) ([]*Chat, error) {
	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	cursor, err := s.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chats []*Chat
	if err = cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// MarkRead sets the user's read watermark for the conversation to
// server time and refreshes updatedAt. Called when a user opens a
// conversation and again after sending into it.
func (s *ChatsStore) MarkRead(ctx context.Context, chatID bson.ObjectID, userID string) error {
	update := bson.M{
		"$currentDate": bson.M{
			"last_read_by." + userID: true,
			"updated_at":             true,
		},
	}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": chatID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchSummary merge-writes the denormalized summary fields after a
// message append. The summary is a cache of the message log, refreshed
// on every write; the log itself stays the source of truth.
func (s *ChatsStore) TouchSummary(ctx context.Context, chatID bson.ObjectID, lastMessage string) error {
	update := bson.M{
		"$set": bson.M{"last_message": lastMessage},
		"$currentDate": bson.M{
			"last_message_time": true,
			"updated_at":        true,
		},
	}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": chatID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
