// Package data provides DB models and stores.
package data

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Mug56-sys/dashboard/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrNotFound is returned by stores when a referenced document is
// absent. Callers treat it as skippable, never fatal.
var ErrNotFound = errors.New("not found")

// searchCandidatePool bounds how many user documents a search scans,
// and searchResultCap bounds how many matches it returns.
const (
	searchCandidatePool = 50
	searchResultCap     = 10
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with an already-hashed
// password and returns it with the generated id populated.
func (u *UsersStore) CreateUser(ctx context.Context, email, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		Email:     normalize.Email(email),
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// Unique email index violation means the address is taken.
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.New("user already exists")
		}
		return nil, err
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by normalized email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID finds a user by ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserExists checks if a user exists by email.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveFCMToken merge-writes the user's push-delivery token onto their
// document. An empty token clears it.
func (u *UsersStore) SaveFCMToken(ctx context.Context, userID bson.ObjectID, token string) error {
	update := bson.M{
		"$set":         bson.M{"fcm_token": token},
		"$currentDate": bson.M{"updated_at": true},
	}
	result, err := u.coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchByEmail scans a bounded candidate pool for emails containing
// the query (case-insensitive), excluding the searching user, and
// returns at most searchResultCap results with prefix matches ranked
// before substring matches.
func (u *UsersStore) SearchByEmail(ctx context.Context, query string, excludeID bson.ObjectID) ([]*User, error) {
	term := normalize.Query(query)
	if term == "" {
		return nil, nil
	}

	// Pull a bounded pool of candidates rather than issuing an
	// unanchored regex over the whole collection; matching and ranking
	// happen here.
	opts := options.Find().SetLimit(searchCandidatePool)
	cursor, err := u.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": excludeID}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var candidates []*User
	if err = cursor.All(ctx, &candidates); err != nil {
		return nil, err
	}

	var matches []*User
	for _, c := range candidates {
		if strings.Contains(normalize.Email(c.Email), term) {
			matches = append(matches, c)
		}
	}

	// Prefix matches first; ties keep candidate order.
	sort.SliceStable(matches, func(i, j int) bool {
		pi := strings.HasPrefix(normalize.Email(matches[i].Email), term)
		pj := strings.HasPrefix(normalize.Email(matches[j].Email), term)
		return pi && !pj
	})

	if len(matches) > searchResultCap {
		matches = matches[:searchResultCap]
	}
	return matches, nil
}

// PersonalTasks returns the user's private to-do list.
func (u *UsersStore) PersonalTasks(ctx context.Context, userID bson.ObjectID) ([]PersonalTask, error) {
	user, err := u.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.PersonalTasks, nil
}

// AddPersonalTask appends an entry to the user's private list and
// returns the created entry. The list is rewritten whole; the id is
// the creation clock, which is unique enough for a single-owner list.
func (u *UsersStore) AddPersonalTask(ctx context.Context, userID bson.ObjectID, text string) (PersonalTask, error) {
	tasks, err := u.PersonalTasks(ctx, userID)
	if err != nil {
		return PersonalTask{}, err
	}
	id := time.Now().UnixMilli()
	for _, t := range tasks {
		// Two adds inside the same millisecond would collide; bump past
		// the highest existing id.
		if t.ID >= id {
			id = t.ID + 1
		}
	}
	entry := PersonalTask{ID: id, Text: text}
	tasks = append(tasks, entry)
	if err := u.writePersonalTasks(ctx, userID, tasks); err != nil {
		return PersonalTask{}, err
	}
	return entry, nil
}

// RenamePersonalTask replaces the text of the entry with the given id.
func (u *UsersStore) RenamePersonalTask(ctx context.Context, userID bson.ObjectID, taskID int64, text string) error {
	tasks, err := u.PersonalTasks(ctx, userID)
	if err != nil {
		return err
	}
	found := false
	for i := range tasks {
		if tasks[i].ID == taskID {
			tasks[i].Text = text
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	return u.writePersonalTasks(ctx, userID, tasks)
}

// RemovePersonalTask deletes the entry with the given id.
func (u *UsersStore) RemovePersonalTask(ctx context.Context, userID bson.ObjectID, taskID int64) error {
	tasks, err := u.PersonalTasks(ctx, userID)
	if err != nil {
		return err
	}
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tasks) {
		return ErrNotFound
	}
	return u.writePersonalTasks(ctx, userID, kept)
}

func (u *UsersStore) writePersonalTasks(ctx context.Context, userID bson.ObjectID, tasks []PersonalTask) error {
	if tasks == nil {
		tasks = []PersonalTask{}
	}
	update := bson.M{
		"$set":         bson.M{"tasks": tasks},
		"$currentDate": bson.M{"updated_at": true},
	}
	result, err := u.coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
