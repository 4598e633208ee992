package live

import (
	"sort"

	"github.com/Mug56-sys/dashboard/internal/data"
)

// MergeMessages folds an incoming full snapshot into previously seen
// state, keyed by message id. Incoming documents win (a task-kind
// message's embedded status may have changed in place), previously
// seen messages absent from the snapshot are kept (a lagging requery
// must not make messages vanish), and delivering the same snapshot
// twice is a no-op. The result is ordered by timestamp, ties broken by
// id so ordering is deterministic.
func MergeMessages(existing, incoming []*data.Message) []*data.Message {
	byID := make(map[string]*data.Message, len(existing)+len(incoming))
	for _, m := range existing {
		byID[m.ID.Hex()] = m
	}
	for _, m := range incoming {
		byID[m.ID.Hex()] = m
	}

	merged := make([]*data.Message, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		}
		return merged[i].ID.Hex() < merged[j].ID.Hex()
	})
	return merged
}
