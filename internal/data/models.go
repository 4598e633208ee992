package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Message kinds. A task message carries an embedded snapshot of the
// task it created; a task_update message is system-generated narration
// of a status change.
const (
	MessageText       = "text"
	MessageTask       = "task"
	MessageTaskUpdate = "task_update"
)

// Task statuses. "deleted" hides a task from the live list; the
// document itself is never removed.
const (
	TaskPending  = "pending"
	TaskFinished = "finished"
	TaskDeleted  = "deleted"
)

// PersonalTask is an entry in a user's private to-do list. The id only
// needs to be locally unique; callers use the creation clock.
type PersonalTask struct {
	ID   int64  `bson:"id"`
	Text string `bson:"text"`
}

// User maps to the users collection.
type User struct {
	ID            bson.ObjectID  `bson:"_id,omitempty"`
	Email         string         `bson:"email"`
	Password      string         `bson:"password,omitempty"`
	FCMToken      string         `bson:"fcm_token,omitempty"`
	PersonalTasks []PersonalTask `bson:"tasks,omitempty"`
	CreatedAt     time.Time      `bson:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at"`
}

// Chat maps to the chats collection: one two-party conversation.
// Participants and ParticipantEmails are index-aligned. PairKey is the
// sorted "loID|hiID" of the participant ids and is unique, so one pair
// of users can never own two chats. LastReadBy maps participant id to
// that user's read watermark; a participant who has never opened the
// chat is absent from the map.
type Chat struct {
	ID                bson.ObjectID        `bson:"_id,omitempty"`
	PairKey           string               `bson:"pair_key"`
	Participants      []string             `bson:"participants"`
	ParticipantEmails []string             `bson:"participant_emails"`
	LastMessage       string               `bson:"last_message,omitempty"`
	LastMessageTime   time.Time            `bson:"last_message_time,omitempty"`
	LastReadBy        map[string]time.Time `bson:"last_read_by,omitempty"`
	CreatedAt         time.Time            `bson:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at"`
}

// HasParticipant reports whether the given user id belongs to the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the id of the first participant that is
// not userID, or "" on an empty participant list.
func (c *Chat) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ReadWatermark returns the user's last-read time and whether one has
// ever been recorded.
func (c *Chat) ReadWatermark(userID string) (time.Time, bool) {
	if c.LastReadBy == nil {
		return time.Time{}, false
	}
	t, ok := c.LastReadBy[userID]
	return t, ok
}

// TaskSnapshot is the task state embedded in a task-kind message at
// send time. Status is the only field mutated after creation: it is
// merge-written in place whenever the referenced task changes status.
type TaskSnapshot struct {
	TaskID bson.ObjectID `bson:"task_id"`
	Task   string        `bson:"task"`
	Status string        `bson:"status"`
}

// Message maps to the messages collection. Sender email is captured at
// send time, not looked up live. Messages are immutable once written
// except for TaskData.Status on task-kind messages.
type Message struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	ChatID      bson.ObjectID `bson:"chat_id"`
	SenderID    string        `bson:"sender_id"`
	SenderEmail string        `bson:"sender_email"`
	Text        string        `bson:"text"`
	Timestamp   time.Time     `bson:"timestamp"`
	Type        string        `bson:"type"`
	TaskData    *TaskSnapshot `bson:"task_data,omitempty"`
}

// Task maps to the tasks collection: a unit of work delegated from one
// user to another. ChatID is the conversation the task was sent in,
// recorded at creation so status updates do not depend on search-based
// backlink resolution (older documents may lack it).
type Task struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	ChatID        bson.ObjectID `bson:"chat_id,omitempty"`
	Task          string        `bson:"task"`
	FromUserID    string        `bson:"from_user_id"`
	FromUserEmail string        `bson:"from_user_email"`
	ToUserID      string        `bson:"to_user_id"`
	ToUserEmail   string        `bson:"to_user_email"`
	Status        string        `bson:"status"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
}

// ValidTaskStatus reports whether s is one of the known task statuses.
// Any known status is reachable from any other; "finished" and
// "deleted" are terminal only by convention, the recipient may flip a
// task back to pending.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskPending, TaskFinished, TaskDeleted:
		return true
	}
	return false
}
