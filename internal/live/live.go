// Package live implements cancellable live queries over MongoDB change
// streams. A subscription delivers a full snapshot of its query result
// on start and again after every relevant change, never a diff.
// Snapshots for one subscription are delivered from a single goroutine,
// so callbacks never overlap; independent subscriptions interleave
// freely.
package live

import (
	"context"
	"sync"

	"github.com/Mug56-sys/dashboard/internal/data"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Subscription is a running live query. Cancel disposes it; the owning
// scope is responsible for calling Cancel on teardown. Cancel is
// idempotent and blocks until the delivery goroutine has stopped.
type Subscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Cancel stops the subscription and waits for delivery to finish.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

// run tails the change stream and re-runs the query after every event.
// The initial snapshot is delivered before the first event. Errors on
// requery are reported through onError and do not stop the stream; a
// broken stream ends the subscription.
func run(ctx context.Context, cancel context.CancelFunc, stream *mongo.ChangeStream, deliver func(context.Context) error, onError func(error)) *Subscription {
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer stream.Close(context.Background())

		if err := deliver(ctx); err != nil {
			if ctx.Err() == nil && onError != nil {
				onError(err)
			}
		}

		for stream.Next(ctx) {
			if err := deliver(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil && onError != nil {
			onError(err)
		}
	}()

	return sub
}

// matchOps narrows a change stream to events that can alter the
// subscribed query's result set.
func matchOps(ops ...string) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": ops}}}},
	}
}

// WatchChats subscribes to the user's conversation list. Every change
// to the chats collection triggers a full re-read of the list, ordered
// by updatedAt descending.
func WatchChats(ctx context.Context, coll *mongo.Collection, chats *data.ChatsStore, userID string, onSnapshot func([]*data.Chat), onError func(error)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := coll.Watch(ctx, matchOps("insert", "update", "replace"))
	if err != nil {
		cancel()
		return nil, err
	}

	deliver := func(ctx context.Context) error {
		snapshot, err := chats.ForUser(ctx, userID)
		if err != nil {
			return err
		}
		onSnapshot(snapshot)
		return nil
	}
	return run(ctx, cancel, stream, deliver, onError), nil
}

// WatchMessages subscribes to one conversation's ordered message log.
// Updates are watched as well as inserts because task-kind messages
// mutate their embedded snapshot in place.
func WatchMessages(ctx context.Context, coll *mongo.Collection, msgs *data.MessagesStore, chatID bson.ObjectID, onSnapshot func([]*data.Message), onError func(error)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := coll.Watch(ctx, matchOps("insert", "update", "replace"))
	if err != nil {
		cancel()
		return nil, err
	}

	deliver := func(ctx context.Context) error {
		snapshot, err := msgs.ForChat(ctx, chatID)
		if err != nil {
			return err
		}
		onSnapshot(snapshot)
		return nil
	}
	return run(ctx, cancel, stream, deliver, onError), nil
}

// WatchReceivedTasks subscribes to the user's incoming task list.
func WatchReceivedTasks(ctx context.Context, coll *mongo.Collection, tasks *data.TasksStore, userID string, onSnapshot func([]*data.Task), onError func(error)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := coll.Watch(ctx, matchOps("insert", "update", "replace"))
	if err != nil {
		cancel()
		return nil, err
	}

	deliver := func(ctx context.Context) error {
		snapshot, err := tasks.ReceivedBy(ctx, userID)
		if err != nil {
			return err
		}
		onSnapshot(snapshot)
		return nil
	}
	return run(ctx, cancel, stream, deliver, onError), nil
}
