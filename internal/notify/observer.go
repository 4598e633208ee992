package notify

import (
	"context"
	"time"

	"github.com/Mug56-sys/dashboard/internal/data"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Observer tails the messages collection and raises alerts for
// recipients of newly appended messages. It is the daemon-side half of
// the fan-out; connected clients receive alerts through the hub.
type Observer struct {
	log     zerolog.Logger
	coll    *mongo.Collection
	users   *data.UsersStore
	chats   *data.ChatsStore
	hub     *Hub
	alerter *Alerter
}

// NewObserver wires an observer over the messages collection.
func NewObserver(log zerolog.Logger, coll *mongo.Collection, users *data.UsersStore, chats *data.ChatsStore, hub *Hub, alerter *Alerter) *Observer {
	return &Observer{
		log:     log,
		coll:    coll,
		users:   users,
		chats:   chats,
		hub:     hub,
		alerter: alerter,
	}
}

// messageEvent is the slice of a change-stream event the observer
// needs: the operation and the inserted document.
type messageEvent struct {
	OperationType string       `bson:"operationType"`
	FullDocument  data.Message `bson:"fullDocument"`
}

// Run blocks tailing the change stream until the context is cancelled
// or the stream breaks.
func (o *Observer) Run(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"operationType": "insert"}}},
	}
	stream, err := o.coll.Watch(ctx, pipeline)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	o.log.Info().Msg("notification observer running")

	for stream.Next(ctx) {
		var ev messageEvent
		if err := stream.Decode(&ev); err != nil {
			o.log.Warn().Err(err).Msg("failed to decode message event")
			continue
		}
		o.handle(ctx, &ev.FullDocument)
	}
	if ctx.Err() != nil {
		return nil
	}
	return stream.Err()
}

// handle fans one appended message out to the other participant of its
// conversation. Every failure here is local to the message: logged and
// skipped, never fatal to the observer.
func (o *Observer) handle(ctx context.Context, msg *data.Message) {
	chat, err := o.chats.Get(ctx, msg.ChatID)
	if err != nil {
		o.log.Warn().Err(err).Str("chat_id", msg.ChatID.Hex()).Msg("message for unknown conversation")
		return
	}

	recipientID := chat.OtherParticipant(msg.SenderID)
	if recipientID == "" {
		return
	}

	// A recipient already caught up gets no alert; the watermark is
	// the suppression signal.
	watermark, ok := chat.ReadWatermark(recipientID)
	if ok && !msg.Timestamp.After(watermark) {
		return
	}

	// Notification permission is modeled by the presence of a
	// registered push token on the recipient's user document.
	permission := false
	if oid, err := bson.ObjectIDFromHex(recipientID); err == nil {
		if user, err := o.users.GetUserByID(ctx, oid); err == nil {
			permission = user.FCMToken != ""
		}
	}

	alert, raise := o.alerter.Decide(recipientID, FormatItem(msg), time.Now(), permission)
	if !raise {
		return
	}

	if err := o.hub.SendToUser(recipientID, alert); err != nil {
		// Not connected or a sink failed; the message is persisted and
		// the digest will surface it on the next snapshot.
		o.log.Debug().Err(err).Str("user", recipientID).Msg("alert delivery skipped")
	}
}
