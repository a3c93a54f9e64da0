// Package backup copies every saved media snapshot to an S3-compatible bucket.
//
// The mirror is best effort: the local store stays the source of truth and a
// failed upload is logged, never surfaced to chat users.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/mediabot/internal/events"
	"github.com/felixgeelhaar/mediabot/internal/media"
	"github.com/felixgeelhaar/mediabot/internal/observe"
)

const uploadTimeout = 30 * time.Second

// Mirror uploads the latest snapshot in the background. Snapshots published
// while an upload is running collapse into one: only the newest is sent.
type Mirror struct {
	bucket Bucket
	key    string
	obs    *observe.Observer

	mu      sync.Mutex
	pending []media.Record
	hasNext bool
	newest  uint64
	wake    chan struct{}
}

func NewMirror(b Bucket, key string, obs *observe.Observer) *Mirror {
	return &Mirror{
		bucket: b,
		key:    key,
		obs:    obs,
		wake:   make(chan struct{}, 1),
	}
}

// Attach subscribes the mirror to snapshot events.
func (m *Mirror) Attach(bus *events.Bus) {
	bus.Subscribe(events.SnapshotSaved, func(e events.Event) {
		records, ok := e.Data["records"].([]media.Record)
		if !ok {
			return
		}
		version, _ := e.Data["version"].(uint64)
		m.Offer(version, records)
	})
}

// Offer queues records saved as version for upload, replacing any queued
// snapshot. Snapshots no newer than one already offered are dropped, since
// events from concurrent saves can arrive out of order. It reports whether
// records were queued.
func (m *Mirror) Offer(version uint64, records []media.Record) bool {
	m.mu.Lock()
	if version <= m.newest {
		m.mu.Unlock()
		return false
	}
	m.newest = version
	m.pending = records
	m.hasNext = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *Mirror) take() ([]media.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasNext {
		return nil, false
	}
	records := m.pending
	m.pending, m.hasNext = nil, false
	return records, true
}

// Run uploads queued snapshots until ctx is done, then flushes the last one.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if records, ok := m.take(); ok {
				m.upload(context.WithoutCancel(ctx), records)
			}
			return
		case <-m.wake:
			if ctx.Err() != nil {
				continue
			}
			if records, ok := m.take(); ok {
				m.upload(ctx, records)
			}
		}
	}
}

func (m *Mirror) upload(ctx context.Context, records []media.Record) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	ctx, span := m.obs.StartSpan(ctx, "backup.upload")
	defer span.End()

	data, err := Encode(records)
	if err != nil {
		m.obs.Log().Error().Err(err).Msg("failed to encode snapshot")
		return
	}
	if err := m.bucket.Upload(ctx, m.key, data); err != nil {
		span.RecordError(err)
		m.obs.Log().Warn().Err(err).Str("key", m.key).Msg("snapshot backup failed")
		return
	}
	m.obs.Log().Info().Str("key", m.key).Int("records", len(records)).Msg("snapshot backed up")
}

// Fetch downloads and decodes the backed-up snapshot.
func (m *Mirror) Fetch(ctx context.Context) ([]media.Record, error) {
	data, err := m.bucket.Download(ctx, m.key)
	if err != nil {
		return nil, err
	}
	var records []media.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode backup %s: %w", m.key, err)
	}
	for i, r := range records {
		if !r.Type.Valid() {
			return nil, fmt.Errorf("backup record %d: %w: %q", i+1, media.ErrUnsupportedMedia, r.Type)
		}
		if r.Tags == nil {
			records[i].Tags = []string{}
		}
	}
	return records, nil
}

// Encode renders records in the same indented form as the local JSON file.
func Encode(records []media.Record) ([]byte, error) {
	if records == nil {
		records = []media.Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}
