// Package progress records which artefacts a player has collected.
//
// The ledger is append-only per (quest, artefact): the first successful
// collection creates a record and every later attempt returns that same
// record. Records disappear only through an explicit quest reset.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Record is the immutable proof of a collection.
type Record struct {
	QuestID           string `json:"questId"`
	ArtefactID        string `json:"artefactId"`
	CollectedAtMillis int64  `json:"collectedAtMillis"`
	PointsAwarded     int    `json:"pointsAwarded"`
}

// Snapshot is the exported form of the whole ledger: a plain key -> entry map.
type Snapshot map[string]Entry

// Key returns the composite store key for a (quest, artefact) pair.
func Key(questID, artefactID string) string {
	return questID + ":" + artefactID
}

// SplitKey reverses Key. Quest ids never contain ':'.
func SplitKey(key string) (questID, artefactID string, ok bool) {
	return strings.Cut(key, ":")
}

func recordFrom(key string, e Entry) Record {
	q, a, _ := SplitKey(key)
	return Record{QuestID: q, ArtefactID: a, CollectedAtMillis: e.When, PointsAwarded: e.Points}
}

type Ledger struct {
	store Store
	now   func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) HasCollected(ctx context.Context, questID, artefactID string) (bool, error) {
	_, err := l.store.Get(ctx, Key(questID, artefactID))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading progress: %w", err)
	}
	return true, nil
}

// Lookup returns the record for a pair, or ErrNotFound.
func (l *Ledger) Lookup(ctx context.Context, questID, artefactID string) (Record, error) {
	key := Key(questID, artefactID)
	e, err := l.store.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	return recordFrom(key, e), nil
}

// RecordCollection stores a collection unless one already exists, in which
// case the existing record is returned unchanged. created reports whether this
// call wrote the record.
func (l *Ledger) RecordCollection(ctx context.Context, questID, artefactID string, points int) (rec Record, created bool, err error) {
	key := Key(questID, artefactID)
	e, created, err := l.store.PutIfAbsent(ctx, key, Entry{When: l.now().UnixMilli(), Points: points})
	if err != nil {
		return Record{}, false, fmt.Errorf("recording collection %s: %w", key, err)
	}
	return recordFrom(key, e), created, nil
}

// ResetQuest removes every record of the quest and returns how many went.
func (l *Ledger) ResetQuest(ctx context.Context, questID string) (int, error) {
	n, err := l.store.DeletePrefix(ctx, questID+":")
	if err != nil {
		return 0, fmt.Errorf("resetting quest %s: %w", questID, err)
	}
	return n, nil
}

// TotalScore sums awarded points across all quests.
func (l *Ledger) TotalScore(ctx context.Context) (int, error) {
	all, err := l.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading progress: %w", err)
	}
	total := 0
	for _, e := range all {
		total += e.Points
	}
	return total, nil
}

// Records lists the quest's records, most recent first.
func (l *Ledger) Records(ctx context.Context, questID string) ([]Record, error) {
	all, err := l.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading progress: %w", err)
	}
	prefix := questID + ":"
	var out []Record
	for _, k := range sortedKeys(all) {
		if strings.HasPrefix(k, prefix) {
			out = append(out, recordFrom(k, all[k]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CollectedAtMillis > out[j].CollectedAtMillis
	})
	return out, nil
}

// Collected returns the set of collected artefact ids for a quest.
func (l *Ledger) Collected(ctx context.Context, questID string) (map[string]Record, error) {
	recs, err := l.Records(ctx, questID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(recs))
	for _, r := range recs {
		out[r.ArtefactID] = r
	}
	return out, nil
}

func (l *Ledger) Export(ctx context.Context) (Snapshot, error) {
	all, err := l.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting progress: %w", err)
	}
	return Snapshot(all), nil
}

// Import adds the snapshot's entries without overwriting existing ones and
// returns how many were new.
func (l *Ledger) Import(ctx context.Context, snap Snapshot) (int, error) {
	added := 0
	for _, k := range sortedKeys(snap) {
		if _, _, ok := SplitKey(k); !ok {
			return added, fmt.Errorf("importing progress: malformed key %q", k)
		}
		_, created, err := l.store.PutIfAbsent(ctx, k, snap[k])
		if err != nil {
			return added, fmt.Errorf("importing progress %s: %w", k, err)
		}
		if created {
			added++
		}
	}
	return added, nil
}
