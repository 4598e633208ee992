// Package messenger is the messaging and task-state synchronization
// engine: conversation directory, message channel, read-state tracking
// and the delegated-task lifecycle, composed over the data stores.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mug56-sys/dashboard/internal/data"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNotParticipant means the acting user does not belong to the
	// conversation they tried to write into.
	ErrNotParticipant = errors.New("user is not a conversation participant")

	// ErrInvalidStatus means a task status outside the known set.
	ErrInvalidStatus = errors.New("invalid task status")
)

// Messenger exposes the operations the UI layer calls. All multi-step
// writes are sequential dependent writes against the document store;
// there is no cross-document transaction, so a failure mid-sequence
// leaves earlier steps committed. Send-style methods return whatever
// was committed alongside the error so the caller can reconcile its
// optimistic echo.
type Messenger struct {
	log   zerolog.Logger
	users *data.UsersStore
	chats *data.ChatsStore
	msgs  *data.MessagesStore
	tasks *data.TasksStore
}

// New wires a Messenger over the four stores.
func New(log zerolog.Logger, users *data.UsersStore, chats *data.ChatsStore, msgs *data.MessagesStore, tasks *data.TasksStore) *Messenger {
	return &Messenger{log: log, users: users, chats: chats, msgs: msgs, tasks: tasks}
}

// FindOrCreateConversation returns the conversation between the
// current user and other, creating it on first contact. The result
// always has the current user among its participants.
func (m *Messenger) FindOrCreateConversation(ctx context.Context, selfID, selfEmail string, other *data.User) (*data.Chat, error) {
	return m.chats.FindOrCreate(ctx, selfID, selfEmail, other.ID.Hex(), other.Email)
}

// SearchUsers finds users by email substring, excluding the searcher.
func (m *Messenger) SearchUsers(ctx context.Context, query string, selfID bson.ObjectID) ([]*data.User, error) {
	return m.users.SearchByEmail(ctx, query, selfID)
}

// Conversations lists the user's conversations, most recent first.
func (m *Messenger) Conversations(ctx context.Context, userID string) ([]*data.Chat, error) {
	return m.chats.ForUser(ctx, userID)
}

// Send appends a text message, refreshes the conversation summary and
// marks the sender read (sending implies having read up to now). If
// the append commits but a follow-up write fails, the message is
// returned together with the error.
func (m *Messenger) Send(ctx context.Context, chatID bson.ObjectID, senderID, senderEmail, body string) (*data.Message, error) {
	chat, err := m.chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	msg, err := m.msgs.Append(ctx, chatID, senderID, senderEmail, body)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := m.chats.TouchSummary(ctx, chatID, body); err != nil {
		return msg, fmt.Errorf("message appended but summary update failed: %w", err)
	}
	if err := m.chats.MarkRead(ctx, chatID, senderID); err != nil {
		return msg, fmt.Errorf("message appended but sender read-state update failed: %w", err)
	}
	return msg, nil
}

// SendTask creates a pending task delegated to the other participant
// and a task-kind message embedding its snapshot, then refreshes the
// conversation summary like a plain send.
func (m *Messenger) SendTask(ctx context.Context, chatID bson.ObjectID, senderID, senderEmail string, recipient *data.User, taskText string) (*data.Task, *data.Message, error) {
	chat, err := m.chats.Get(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if !chat.HasParticipant(senderID) || !chat.HasParticipant(recipient.ID.Hex()) {
		return nil, nil, ErrNotParticipant
	}

	task, err := m.tasks.Create(ctx, chatID, senderID, senderEmail, recipient.ID.Hex(), recipient.Email, taskText)
	if err != nil {
		return nil, nil, fmt.Errorf("create task: %w", err)
	}

	msg, err := m.msgs.AppendTask(ctx, chatID, senderID, senderEmail, task)
	if err != nil {
		return task, nil, fmt.Errorf("task created but message append failed: %w", err)
	}

	summary := "Task: " + taskText
	if err := m.chats.TouchSummary(ctx, chatID, summary); err != nil {
		return task, msg, fmt.Errorf("task sent but summary update failed: %w", err)
	}
	if err := m.chats.MarkRead(ctx, chatID, senderID); err != nil {
		return task, msg, fmt.Errorf("task sent but sender read-state update failed: %w", err)
	}
	return task, msg, nil
}

// MarkRead moves the user's read watermark for the conversation to
// server time.
func (m *Messenger) MarkRead(ctx context.Context, chatID bson.ObjectID, userID string) error {
	return m.chats.MarkRead(ctx, chatID, userID)
}

// UnreadCount counts the messages in the conversation the user has not
// read. The count is always derived from the message log and the
// watermark, never stored.
func (m *Messenger) UnreadCount(ctx context.Context, chat *data.Chat, userID string) (int, error) {
	watermark, ok := chat.ReadWatermark(userID)
	return m.msgs.CountUnread(ctx, chat.ID, userID, watermark, ok)
}

// TotalUnread sums unread counts across every conversation the user
// participates in.
func (m *Messenger) TotalUnread(ctx context.Context, userID string) (int, error) {
	chats, err := m.chats.ForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, chat := range chats {
		n, err := m.UnreadCount(ctx, chat, userID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// CountUnread is the in-memory form of UnreadCount, computed over a
// live snapshot of the message log. A message stamped exactly at the
// watermark counts as read; with no watermark every message from the
// other party counts.
func CountUnread(msgs []*data.Message, userID string, watermark time.Time, hasWatermark bool) int {
	count := 0
	for _, msg := range msgs {
		if msg.SenderID == userID {
			continue
		}
		if hasWatermark && !msg.Timestamp.After(watermark) {
			continue
		}
		count++
	}
	return count
}

// Narration renders the human-readable status-change line appended to
// the conversation when a task changes state.
func Narration(actorEmail, taskText, status string) string {
	return fmt.Sprintf("%s marked task %q as %s", actorEmail, taskText, status)
}

// SetTaskStatus drives the task lifecycle: update the task, propagate
// the status into the embedded snapshot of every referencing message,
// then append a narration message into the task's conversation. The
// first two steps always apply; when no conversation can be resolved
// (or the actor is not a participant of it) the narration is skipped
// and the operation still succeeds.
func (m *Messenger) SetTaskStatus(ctx context.Context, taskID bson.ObjectID, status, actorID, actorEmail string) error {
	if !data.ValidTaskStatus(status) {
		return ErrInvalidStatus
	}

	task, err := m.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}

	if err := m.tasks.SetStatus(ctx, taskID, status); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	// Field-level merge into the originating message snapshot(s).
	// Zero matches is tolerated (the message may never have been
	// written, see partial-write semantics of SendTask).
	modified, err := m.msgs.PropagateTaskStatus(ctx, taskID, status)
	if err != nil {
		return fmt.Errorf("task updated but snapshot propagation failed: %w", err)
	}
	if modified == 0 {
		m.log.Warn().Str("task_id", taskID.Hex()).Msg("no task message snapshot to propagate status into")
	}

	chat := m.resolveTaskChat(ctx, task, actorID)
	if chat == nil {
		m.log.Warn().Str("task_id", taskID.Hex()).Msg("could not resolve task conversation; narration skipped")
		return nil
	}
	if !chat.HasParticipant(actorID) {
		// The store rejects writes from non-participants anyway; this
		// is the defensive short-circuit in front of it.
		m.log.Warn().
			Str("task_id", taskID.Hex()).
			Str("chat_id", chat.ID.Hex()).
			Str("actor", actorID).
			Msg("actor not a participant of resolved conversation; narration skipped")
		return nil
	}

	narration := Narration(actorEmail, task.Task, status)
	if _, err := m.msgs.AppendTaskUpdate(ctx, chat.ID, actorID, actorEmail, narration); err != nil {
		return fmt.Errorf("task updated but narration append failed: %w", err)
	}
	if err := m.chats.TouchSummary(ctx, chat.ID, narration); err != nil {
		return fmt.Errorf("task updated but summary refresh failed: %w", err)
	}
	return nil
}

// resolveTaskChat finds the conversation a task belongs to: the chat
// id recorded on the task, else the originating message's chat, else a
// best-effort search through the actor's conversations (one holding
// both task endpoints wins over one merely holding the actor). Returns
// nil when nothing resolves.
func (m *Messenger) resolveTaskChat(ctx context.Context, task *data.Task, actorID string) *data.Chat {
	if !task.ChatID.IsZero() {
		if chat, err := m.chats.Get(ctx, task.ChatID); err == nil {
			return chat
		}
	}

	// Legacy tasks carry no backlink; fall back to the originating
	// message, then to searching the actor's conversations.
	if originating, err := m.msgs.FindByTaskID(ctx, task.ID); err == nil && len(originating) > 0 {
		if chat, err := m.chats.Get(ctx, originating[0].ChatID); err == nil {
			return chat
		}
	}

	chats, err := m.chats.ForUser(ctx, actorID)
	if err != nil || len(chats) == 0 {
		return nil
	}
	for _, chat := range chats {
		if chat.HasParticipant(task.FromUserID) && chat.HasParticipant(task.ToUserID) {
			return chat
		}
	}
	return chats[0]
}

// ReceivedTasks lists the user's live incoming tasks.
func (m *Messenger) ReceivedTasks(ctx context.Context, userID string) ([]*data.Task, error) {
	return m.tasks.ReceivedBy(ctx, userID)
}

// RegisterPushToken records the user's push-delivery token.
func (m *Messenger) RegisterPushToken(ctx context.Context, userID bson.ObjectID, token string) error {
	return m.users.SaveFCMToken(ctx, userID, token)
}

// PersonalTasks returns the user's private to-do list.
func (m *Messenger) PersonalTasks(ctx context.Context, userID bson.ObjectID) ([]data.PersonalTask, error) {
	return m.users.PersonalTasks(ctx, userID)
}

// AddPersonalTask appends an entry to the user's private list.
func (m *Messenger) AddPersonalTask(ctx context.Context, userID bson.ObjectID, text string) (data.PersonalTask, error) {
	return m.users.AddPersonalTask(ctx, userID, text)
}

// RenamePersonalTask replaces the text of one private list entry.
func (m *Messenger) RenamePersonalTask(ctx context.Context, userID bson.ObjectID, taskID int64, text string) error {
	return m.users.RenamePersonalTask(ctx, userID, taskID, text)
}

// RemovePersonalTask deletes one private list entry.
func (m *Messenger) RemovePersonalTask(ctx context.Context, userID bson.ObjectID, taskID int64) error {
	return m.users.RemovePersonalTask(ctx, userID, taskID)
}
