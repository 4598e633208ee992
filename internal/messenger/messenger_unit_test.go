package messenger

import (
	"strings"
	"testing"
	"time"

	"github.com/Mug56-sys/dashboard/internal/data"
)

func textMsg(sender string, ts time.Time) *data.Message {
	return &data.Message{SenderID: sender, Timestamp: ts, Type: data.MessageText}
}

func TestCountUnread(t *testing.T) {
	base := time.Now().UTC()
	msgs := []*data.Message{
		textMsg("u1", base.Add(1*time.Second)),
		textMsg("u1", base.Add(2*time.Second)),
		textMsg("u2", base.Add(3*time.Second)),
		textMsg("u1", base.Add(4*time.Second)),
	}

	// Never read: every message from the other party is unread.
	if got := CountUnread(msgs, "u2", time.Time{}, false); got != 3 {
		t.Fatalf("unread without watermark = %d, want 3", got)
	}

	// Own messages never count.
	if got := CountUnread(msgs, "u1", time.Time{}, false); got != 1 {
		t.Fatalf("unread for sender = %d, want 1", got)
	}

	// Watermark after second message leaves the fourth unread.
	if got := CountUnread(msgs, "u2", base.Add(2*time.Second), true); got != 1 {
		t.Fatalf("unread with watermark = %d, want 1", got)
	}
}

func TestCountUnreadWatermarkBoundary(t *testing.T) {
	base := time.Now().UTC()
	msgs := []*data.Message{
		textMsg("u1", base),
	}

	// A message stamped exactly at the watermark counts as read.
	if got := CountUnread(msgs, "u2", base, true); got != 0 {
		t.Fatalf("message at watermark counted as unread")
	}
	// One millisecond past the watermark counts as unread.
	if got := CountUnread(msgs, "u2", base.Add(-time.Millisecond), true); got != 1 {
		t.Fatalf("message after watermark not counted")
	}
}

func TestCountUnreadEmpty(t *testing.T) {
	if got := CountUnread(nil, "u1", time.Time{}, false); got != 0 {
		t.Fatalf("unread over empty log = %d, want 0", got)
	}
}

func TestNarration(t *testing.T) {
	got := Narration("bob@example.com", "Buy milk", data.TaskFinished)
	if !strings.Contains(got, "Buy milk") {
		t.Fatalf("narration %q missing task text", got)
	}
	if !strings.Contains(got, "finished") {
		t.Fatalf("narration %q missing status", got)
	}
	if !strings.Contains(got, "bob@example.com") {
		t.Fatalf("narration %q missing actor", got)
	}
}
