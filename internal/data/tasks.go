package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// TasksStore performs delegated-task DB operations.
type TasksStore struct {
	coll *mongo.Collection
}

// NewTasksStore returns a TasksStore using the provided collection.
func NewTasksStore(coll *mongo.Collection) *TasksStore {
	return &TasksStore{coll: coll}
}

// Create inserts a pending task delegated from one user to another.
// The originating conversation id is recorded on the task so status
// updates can resolve it without searching.
func (t *TasksStore) Create(ctx context.Context, chatID bson.ObjectID, fromID, fromEmail, toID, toEmail, text string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ChatID:        chatID,
		Task:          text,
		FromUserID:    fromID,
		FromUserEmail: fromEmail,
		ToUserID:      toID,
		ToUserEmail:   toEmail,
		Status:        TaskPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result, err := t.coll.InsertOne(ctx, task)
	if err != nil {
		return nil, err
	}
	task.ID = result.InsertedID.(bson.ObjectID)
	return task, nil
}

// Get loads one task by id.
func (t *TasksStore) Get(ctx context.Context, id bson.ObjectID) (*Task, error) {
	var task Task
	err := t.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// SetStatus updates the task's status and stamps updatedAt with server
// time. The task document is never removed; "deleted" only hides it
// from the live list.
func (t *TasksStore) SetStatus(ctx context.Context, id bson.ObjectID, status string) error {
	update := bson.M{
		"$set":         bson.M{"status": status},
		"$currentDate": bson.M{"updated_at": true},
	}
	result, err := t.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReceivedBy returns the user's live incoming task list, newest
// activity first, with deleted tasks filtered out.
func (t *TasksStore) ReceivedBy(ctx context.Context, userID string) ([]*Task, error) {
	filter := bson.M{
		"to_user_id": userID,
		"status":     bson.M{"$ne": TaskDeleted},
	}
	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	cursor, err := t.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*Task
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
