package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Append inserts a plain text message into a conversation and returns
// the saved record with its generated id.
func (m *MessagesStore) Append(ctx context.Context, chatID bson.ObjectID, senderID, senderEmail, text string) (*Message, error) {
	return m.insert(ctx, &Message{
		ChatID:      chatID,
		SenderID:    senderID,
		SenderEmail: senderEmail,
		Text:        text,
		Timestamp:   time.Now().UTC(),
		Type:        MessageText,
	})
}

// AppendTask inserts a task-kind message embedding a snapshot of the
// task it created.
func (m *MessagesStore) AppendTask(ctx context.Context, chatID bson.ObjectID, senderID, senderEmail string, task *Task) (*Message, error) {
	return m.insert(ctx, &Message{
		ChatID:      chatID,
		SenderID:    senderID,
		SenderEmail: senderEmail,
		Text:        task.Task,
		Timestamp:   time.Now().UTC(),
		Type:        MessageTask,
		TaskData: &TaskSnapshot{
			TaskID: task.ID,
			Task:   task.Task,
			Status: task.Status,
		},
	})
}

// AppendTaskUpdate inserts a system-generated narration of a task
// status change into the conversation history.
func (m *MessagesStore) AppendTaskUpdate(ctx context.Context, chatID bson.ObjectID, senderID, senderEmail, narration string) (*Message, error) {
	return m.insert(ctx, &Message{
		ChatID:      chatID,
		SenderID:    senderID,
		SenderEmail: senderEmail,
		Text:        narration,
		Timestamp:   time.Now().UTC(),
		Type:        MessageTaskUpdate,
	})
}

func (m *MessagesStore) insert(ctx context.Context, msg *Message) (*Message, error) {
	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// ForChat returns the full ordered log of a conversation, oldest
// first. This is the query the per-conversation live subscription
// re-runs to build each snapshot.
func (m *MessagesStore) ForChat(ctx context.Context, chatID bson.ObjectID) ([]*Message, error) {
	opts := options.Find().SetSort(bson.M{"timestamp": 1})
	cursor, err := m.coll.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// FindByTaskID returns the task-kind message(s) whose embedded
// snapshot references the given task. Exactly one exists at creation,
// but the caller must tolerate zero or several.
func (m *MessagesStore) FindByTaskID(ctx context.Context, taskID bson.ObjectID) ([]*Message, error) {
	cursor, err := m.coll.Find(ctx, bson.M{"task_data.task_id": taskID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// PropagateTaskStatus merge-writes the new status into the embedded
// snapshot of every message referencing the task. No new message is
// created here; this is the one sanctioned mutation of an existing
// message.
func (m *MessagesStore) PropagateTaskStatus(ctx context.Context, taskID bson.ObjectID, status string) (int64, error) {
	result, err := m.coll.UpdateMany(ctx,
		bson.M{"task_data.task_id": taskID},
		bson.M{"$set": bson.M{"task_data.status": status}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// CountUnread counts messages in the conversation that the user has
// not read: sent by someone else, with a timestamp strictly after the
// user's watermark. With no watermark every other-party message counts.
// A message stamped exactly at the watermark counts as read.
func (m *MessagesStore) CountUnread(ctx context.Context, chatID bson.ObjectID, userID string, watermark time.Time, hasWatermark bool) (int, error) {
	filter := bson.M{
		"chat_id":   chatID,
		"sender_id": bson.M{"$ne": userID},
	}
	if hasWatermark {
		filter["timestamp"] = bson.M{"$gt": watermark}
	}
	count, err := m.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
