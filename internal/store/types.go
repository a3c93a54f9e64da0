package store

import (
	"fmt"

	"github.com/felixgeelhaar/mediabot/internal/media"
)

// Backend names accepted by the storage.backend setting.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Settings is the key/value configuration table kept next to the media data.
type Settings interface {
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
}

// MediaStorage persists the whole media collection.
type MediaStorage interface {
	media.Persister
	Close() error
}

// normalize validates records read from disk and turns their tag lists into
// sets, so hand-edited files with repeated tags load with each tag once.
func normalize(records []media.Record) ([]media.Record, error) {
	if records == nil {
		return []media.Record{}, nil
	}
	for i := range records {
		if !records[i].Type.Valid() {
			return nil, fmt.Errorf("record %d has unknown media_type %q", i+1, records[i].Type)
		}
		records[i].Tags = media.UniqueTags(records[i].Tags)
	}
	return records, nil
}
