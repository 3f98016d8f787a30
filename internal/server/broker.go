package server

import (
	"encoding/json"
	"sync"

	"github.com/playperu/heartlands/internal/progress"
)

const (
	EventCollected       = "collected"
	EventQuestReset      = "quest_reset"
	EventCatalogReloaded = "catalog_reloaded"
)

// Event is the payload published to SSE and WebSocket subscribers.
type Event struct {
	Type    string           `json:"type"`
	QuestID string           `json:"questId,omitempty"`
	Record  *progress.Record `json:"record,omitempty"`
	Removed int              `json:"removed,omitempty"`
	Score   *int             `json:"score,omitempty"`
}

// Broker is an in-process pub/sub for progress events. A subscriber filters
// by quest id; an empty filter receives everything.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan []byte]string
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[chan []byte]string),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for questID,
// or for every quest when questID is empty.
func (b *Broker) Subscribe(questID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[ch] = questID
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish sends an event to every matching subscriber. Events without a
// quest id reach all subscribers.
func (b *Broker) Publish(event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch, filter := range b.subs {
		if filter != "" && event.QuestID != "" && filter != event.QuestID {
			continue
		}
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
