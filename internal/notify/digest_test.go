package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/Mug56-sys/dashboard/internal/data"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func chatWith(id bson.ObjectID, participants []string, reads map[string]time.Time) *data.Chat {
	return &data.Chat{ID: id, Participants: participants, LastReadBy: reads}
}

func message(chatID bson.ObjectID, sender, senderEmail, text, kind string, ts time.Time) *data.Message {
	return &data.Message{
		ID:          bson.NewObjectID(),
		ChatID:      chatID,
		SenderID:    sender,
		SenderEmail: senderEmail,
		Text:        text,
		Type:        kind,
		Timestamp:   ts,
	}
}

func TestFormatItem(t *testing.T) {
	chatID := bson.NewObjectID()
	base := time.Now().UTC()

	text := FormatItem(message(chatID, "u1", "a@x.com", "hello", data.MessageText, base))
	if text.Text != "a@x.com: hello" {
		t.Fatalf("text item = %q", text.Text)
	}

	task := message(chatID, "u1", "a@x.com", "Buy milk", data.MessageTask, base)
	task.TaskData = &data.TaskSnapshot{TaskID: bson.NewObjectID(), Task: "Buy milk", Status: data.TaskPending}
	if got := FormatItem(task); got.Text != "a@x.com sent you a task: Buy milk" {
		t.Fatalf("task item = %q", got.Text)
	}

	narration := "a@x.com marked task \"Buy milk\" as finished"
	update := message(chatID, "u1", "a@x.com", narration, data.MessageTaskUpdate, base)
	if got := FormatItem(update); got.Text != narration {
		t.Fatalf("task_update item should be raw narration, got %q", got.Text)
	}
}

func TestBuildDigestBadgeAndItems(t *testing.T) {
	base := time.Now().UTC()
	chatID := bson.NewObjectID()
	chat := chatWith(chatID, []string{"u1", "u2"}, map[string]time.Time{"u2": base})

	msgs := []*data.Message{
		message(chatID, "u1", "a@x.com", "read already", data.MessageText, base.Add(-time.Minute)),
		message(chatID, "u1", "a@x.com", "unread one", data.MessageText, base.Add(time.Second)),
		message(chatID, "u2", "b@x.com", "own message", data.MessageText, base.Add(2*time.Second)),
		message(chatID, "u1", "a@x.com", "unread two", data.MessageText, base.Add(3*time.Second)),
	}

	d := BuildDigest("u2", []*data.Chat{chat}, map[string][]*data.Message{chatID.Hex(): msgs})
	if d.Badge != 2 {
		t.Fatalf("badge = %d, want 2", d.Badge)
	}
	if len(d.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(d.Items))
	}
	// Newest first.
	if d.Items[0].Text != "a@x.com: unread two" {
		t.Fatalf("newest item = %q", d.Items[0].Text)
	}
}

func TestBuildDigestCapsItems(t *testing.T) {
	base := time.Now().UTC()
	chatID := bson.NewObjectID()
	chat := chatWith(chatID, []string{"u1", "u2"}, nil)

	var msgs []*data.Message
	for i := 0; i < 8; i++ {
		msgs = append(msgs, message(chatID, "u1", "a@x.com", fmt.Sprintf("m%d", i), data.MessageText, base.Add(time.Duration(i)*time.Second)))
	}

	d := BuildDigest("u2", []*data.Chat{chat}, map[string][]*data.Message{chatID.Hex(): msgs})
	if d.Badge != 8 {
		t.Fatalf("badge = %d, want 8", d.Badge)
	}
	if len(d.Items) != recentItemCap {
		t.Fatalf("items = %d, want %d", len(d.Items), recentItemCap)
	}
	if d.Items[0].Text != "a@x.com: m7" {
		t.Fatalf("expected newest message first, got %q", d.Items[0].Text)
	}
}

func TestBuildDigestAcrossChats(t *testing.T) {
	base := time.Now().UTC()
	chatA := bson.NewObjectID()
	chatB := bson.NewObjectID()

	chats := []*data.Chat{
		chatWith(chatA, []string{"u1", "u2"}, nil),
		chatWith(chatB, []string{"u3", "u2"}, nil),
	}
	byChat := map[string][]*data.Message{
		chatA.Hex(): {message(chatA, "u1", "a@x.com", "from a", data.MessageText, base)},
		chatB.Hex(): {message(chatB, "u3", "c@x.com", "from c", data.MessageText, base.Add(time.Second))},
	}

	d := BuildDigest("u2", chats, byChat)
	if d.Badge != 2 {
		t.Fatalf("badge across chats = %d, want 2", d.Badge)
	}
	if d.Items[0].Text != "c@x.com: from c" {
		t.Fatalf("expected cross-chat newest first, got %q", d.Items[0].Text)
	}
}
