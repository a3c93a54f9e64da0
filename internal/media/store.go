package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/mediabot/internal/events"
	"go.opentelemetry.io/otel"
)

// DefaultRecentLimit is the size of the "most recent" window.
const DefaultRecentLimit = 10

var tracer = otel.Tracer("mediabot/media")

// Persister durably stores the whole collection.
type Persister interface {
	// Load returns the stored collection, or an empty one if nothing was saved yet.
	Load(ctx context.Context) ([]Record, error)
	// Save replaces the stored collection with records.
	Save(ctx context.Context, records []Record) error
}

// Store is the ordered, positionally indexed media collection.
// Mutations are serialized under one write lock that also covers the
// persistence write; reads share the read lock and get copies.
type Store struct {
	mu        sync.RWMutex
	records   []Record
	persister Persister
	bus       *events.Bus
	// version counts successful saves; snapshots carry it so subscribers can
	// discard one that arrives after a newer one.
	version uint64
}

type Option func(*Store)

// WithEvents makes the store publish mutation events on bus.
func WithEvents(bus *events.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// NewStore loads the collection from p and returns a ready store.
func NewStore(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	records, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load media collection: %w", err)
	}
	for i, r := range records {
		if !r.Type.Valid() {
			return nil, fmt.Errorf("record %d: %w: %q", i+1, ErrUnsupportedMedia, r.Type)
		}
		records[i].Tags = UniqueTags(r.Tags)
	}

	s := &Store{
		records:   records,
		persister: p,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append adds a new untagged record at the tail and returns its position.
func (s *Store) Append(ctx context.Context, t MediaType, caption, fileID string) (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMedia, t)
	}

	var pos int
	snapshot, err := s.mutate(ctx, "append", func(records []Record) ([]Record, error) {
		records = append(records, Record{
			FileID:  fileID,
			Caption: caption,
			Type:    t,
			Tags:    []string{},
		})
		pos = len(records)
		return records, nil
	})
	if err != nil {
		return 0, err
	}

	s.bus.PublishWithData(events.MediaSaved, map[string]interface{}{
		"position":   pos,
		"media_type": string(t),
	})
	s.publishSnapshot(snapshot)
	return pos, nil
}

// AddTags unions tags into the record at position. Existing tags keep their
// order and unseen tags are appended in the order given. The supplied list
// is returned as-is for display.
func (s *Store) AddTags(ctx context.Context, position int, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, ErrNoTags
	}
	for _, t := range tags {
		if t == "" {
			return nil, ErrNoTags
		}
	}

	snapshot, err := s.mutate(ctx, "add_tags", func(records []Record) ([]Record, error) {
		if position < 1 || position > len(records) {
			return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, position)
		}
		rec := &records[position-1]
		for _, t := range tags {
			if !rec.HasTag(t) {
				rec.Tags = append(rec.Tags, t)
			}
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.PublishWithData(events.TagsAdded, map[string]interface{}{
		"position": position,
		"tags":     strings.Join(tags, ","),
	})
	s.publishSnapshot(snapshot)

	out := make([]string, len(tags))
	copy(out, tags)
	return out, nil
}

// Delete removes the record at position; every later record moves down one.
func (s *Store) Delete(ctx context.Context, position int) (Record, error) {
	var removed Record
	snapshot, err := s.mutate(ctx, "delete", func(records []Record) ([]Record, error) {
		if position < 1 || position > len(records) {
			return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, position)
		}
		removed = records[position-1]
		return append(records[:position-1], records[position:]...), nil
	})
	if err != nil {
		return Record{}, err
	}

	s.bus.PublishWithData(events.MediaDeleted, map[string]interface{}{
		"position":   position,
		"media_type": string(removed.Type),
	})
	s.publishSnapshot(snapshot)
	return removed, nil
}

// ListRecent returns the last min(limit, Len()) records in ascending order.
// A non-positive limit means DefaultRecentLimit.
func (s *Store) ListRecent(limit int) []Entry {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Entry, 0, len(s.records)-start)
	for i := start; i < len(s.records); i++ {
		out = append(out, Entry{Position: i + 1, Record: s.records[i].Clone()})
	}
	return out
}

// SearchByTag returns every record carrying tag, compared case-insensitively,
// in collection order.
func (s *Store) SearchByTag(tag string) []Entry {
	want := strings.ToLower(tag)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for i, r := range s.records {
		for _, t := range r.Tags {
			if strings.ToLower(t) == want {
				out = append(out, Entry{Position: i + 1, Record: r.Clone()})
				break
			}
		}
	}
	return out
}

// Stats counts records per type and the total of per-record tag counts.
func (s *Store) Stats() Stats {
	st := Stats{ByType: make(map[MediaType]int, len(Types))}
	for _, t := range Types {
		st.ByType[t] = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st.Total = len(s.records)
	for _, r := range s.records {
		st.ByType[r.Type]++
		st.TotalTags += len(r.Tags)
	}
	return st
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a deep copy of the whole collection.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// mutate applies fn to a private copy of the collection, persists the result and
// only then swaps it in. A failed Save leaves the in-memory state untouched.
// Once the lock is held the operation runs to completion even if ctx is cancelled.
func (s *Store) mutate(ctx context.Context, op string, fn func([]Record) ([]Record, error)) (SavedSnapshot, error) {
	ctx, span := tracer.Start(ctx, "media."+op)
	defer span.End()

	s.mu.Lock()
	next, err := fn(cloneRecords(s.records))
	if err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		return SavedSnapshot{}, err
	}

	if err := s.persister.Save(context.WithoutCancel(ctx), next); err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		s.bus.PublishWithData(events.PersistFailed, map[string]interface{}{
			"op":    op,
			"error": err.Error(),
		})
		return SavedSnapshot{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.records = next
	s.version++
	snapshot := SavedSnapshot{Version: s.version, Records: cloneRecords(next)}
	s.mu.Unlock()
	return snapshot, nil
}

// SavedSnapshot is the collection as written by one save.
type SavedSnapshot struct {
	Version uint64
	Records []Record
}

func (s *Store) publishSnapshot(snap SavedSnapshot) {
	s.bus.PublishWithData(events.SnapshotSaved, map[string]interface{}{
		"records": snap.Records,
		"version": snap.Version,
	})
}

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
