package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	statsKey         = "audio_cache"
	maxStatsAttempts = 5
)

// Stats is the aggregate cache hit record.
type Stats struct {
	Hits      int64     `json:"hits"`
	LastHitAt time.Time `json:"lastHitAt"`
}

// HitCounter keeps Stats in a key-value bucket, updated with compare-and-set.
type HitCounter struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// NewHitCounter creates (or binds to) the stats bucket.
func NewHitCounter(ctx context.Context, js jetstream.JetStream, bucket string) (*HitCounter, error) {
	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "moodshift cache statistics",
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("creating stats bucket %q: %w", bucket, err)
		}
		kv, err = js.KeyValue(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("binding stats bucket %q: %w", bucket, err)
		}
	}
	return &HitCounter{kv: kv, now: time.Now}, nil
}

func (h *HitCounter) get(ctx context.Context) (Stats, uint64, error) {
	entry, err := h.kv.Get(ctx, statsKey)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return Stats{}, 0, nil
		}
		return Stats{}, 0, err
	}
	var s Stats
	if err := json.Unmarshal(entry.Value(), &s); err != nil {
		return Stats{}, 0, fmt.Errorf("decoding stats: %w", err)
	}
	return s, entry.Revision(), nil
}

// Read returns the current stats; zero when nothing was recorded yet.
func (h *HitCounter) Read(ctx context.Context) (Stats, error) {
	s, _, err := h.get(ctx)
	return s, err
}

// Increment adds one hit and stamps the time.
func (h *HitCounter) Increment(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < maxStatsAttempts; attempt++ {
		s, rev, err := h.get(ctx)
		if err != nil {
			return err
		}
		s.Hits++
		s.LastHitAt = h.now().UTC()

		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if rev == 0 {
			_, lastErr = h.kv.Create(ctx, statsKey, data)
		} else {
			_, lastErr = h.kv.Update(ctx, statsKey, data, rev)
		}
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("incrementing hit counter: %w", lastErr)
}
