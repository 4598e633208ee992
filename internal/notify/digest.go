// Package notify derives user-facing alerts from unread messages and
// fans them out to connected delivery sinks.
package notify

import (
	"sort"
	"time"

	"github.com/Mug56-sys/dashboard/internal/data"
	"github.com/Mug56-sys/dashboard/internal/messenger"
)

// recentItemCap bounds how many unread items the digest lists.
const recentItemCap = 5

// Item is one unread entry in a user's digest, already formatted for
// display.
type Item struct {
	MessageID string
	ChatID    string
	Text      string
	Timestamp time.Time
}

// Digest is the derived notification view for one user: the badge
// total across all conversations and the newest unread items.
type Digest struct {
	Badge int
	Items []Item
}

// FormatItem renders a message as a notification line. Task messages
// announce the delegation, task updates are already narration, plain
// text is prefixed with the sender.
func FormatItem(msg *data.Message) Item {
	var text string
	switch msg.Type {
	case data.MessageTask:
		text = msg.SenderEmail + " sent you a task: " + msg.Text
	case data.MessageTaskUpdate:
		text = msg.Text
	default:
		text = msg.SenderEmail + ": " + msg.Text
	}
	return Item{
		MessageID: msg.ID.Hex(),
		ChatID:    msg.ChatID.Hex(),
		Text:      text,
		Timestamp: msg.Timestamp,
	}
}

// BuildDigest computes the notification view for userID from live
// snapshots of the conversation list and each conversation's message
// log. It is a pure derivation: nothing here is stored, so the view
// can never drift from its inputs.
func BuildDigest(userID string, chats []*data.Chat, messagesByChat map[string][]*data.Message) Digest {
	var d Digest
	for _, chat := range chats {
		msgs := messagesByChat[chat.ID.Hex()]
		watermark, ok := chat.ReadWatermark(userID)

		d.Badge += messenger.CountUnread(msgs, userID, watermark, ok)

		for _, msg := range msgs {
			if msg.SenderID == userID {
				continue
			}
			if ok && !msg.Timestamp.After(watermark) {
				continue
			}
			d.Items = append(d.Items, FormatItem(msg))
		}
	}

	sort.Slice(d.Items, func(i, j int) bool {
		return d.Items[i].Timestamp.After(d.Items[j].Timestamp)
	})
	if len(d.Items) > recentItemCap {
		d.Items = d.Items[:recentItemCap]
	}
	return d
}
