package live

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Mug56-sys/dashboard/internal/data"
	"github.com/Mug56-sys/dashboard/internal/db"
)

// Change streams require a replica set; the test skips both when
// MONGODB_URI is unset and when the deployment cannot serve a watch.
func TestWatchMessagesDeliversSnapshots(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	defer func() { _ = c.Close(context.Background()) }()

	_ = c.ChatsCollection().Drop(ctx)
	_ = c.MessagesCollection().Drop(ctx)

	chats := data.NewChatsStore(c.ChatsCollection())
	msgs := data.NewMessagesStore(c.MessagesCollection())

	chat, err := chats.FindOrCreate(ctx, "u1", "a@x.com", "u2", "b@x.com")
	if err != nil {
		t.Fatalf("FindOrCreate failed: %v", err)
	}

	snapshots := make(chan []*data.Message, 8)
	sub, err := WatchMessages(ctx, c.MessagesCollection(), msgs, chat.ID,
		func(s []*data.Message) { snapshots <- s },
		func(err error) { t.Logf("subscription error: %v", err) },
	)
	if err != nil {
		t.Skipf("change streams unavailable on this deployment: %v", err)
	}
	defer sub.Cancel()

	// Initial snapshot: empty log.
	select {
	case s := <-snapshots:
		if len(s) != 0 {
			t.Fatalf("initial snapshot has %d messages, want 0", len(s))
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("no initial snapshot delivered")
	}

	if _, err := msgs.Append(ctx, chat.ID, "u1", "a@x.com", "hello"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// The insert triggers a full resnapshot containing the message.
	deadline := time.After(10 * time.Second)
	for {
		select {
		case s := <-snapshots:
			if len(s) == 1 && s[0].Text == "hello" {
				return
			}
		case <-deadline:
			t.Fatalf("snapshot with appended message never arrived")
		}
	}
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	defer func() { _ = c.Close(context.Background()) }()

	chats := data.NewChatsStore(c.ChatsCollection())
	sub, err := WatchChats(ctx, c.ChatsCollection(), chats, "u1",
		func([]*data.Chat) {}, nil)
	if err != nil {
		t.Skipf("change streams unavailable on this deployment: %v", err)
	}

	sub.Cancel()
	sub.Cancel() // second cancel must not panic or hang
}
