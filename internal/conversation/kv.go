package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const maxUpdateAttempts = 5

// KVStore keeps one JSON record per device in a JetStream key-value bucket.
// Updates use the entry revision so concurrent appends do not drop turns.
type KVStore struct {
	kv    jetstream.KeyValue
	limit int
	now   func() time.Time
}

// NewKVStore creates the bucket, or binds to it if it already exists.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket string, limit int) (*KVStore, error) {
	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "moodshift conversation history",
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("creating conversation bucket %q: %w", bucket, err)
		}
		kv, err = js.KeyValue(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("binding conversation bucket %q: %w", bucket, err)
		}
	}
	limit = PairLimit(limit)
	return &KVStore{kv: kv, limit: limit, now: time.Now}, nil
}

// Device ids are arbitrary client strings; KV keys are not.
func key(deviceID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(deviceID))
}

func (s *KVStore) get(ctx context.Context, deviceID string) (*Record, uint64, error) {
	entry, err := s.kv.Get(ctx, key(deviceID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var rec Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, 0, fmt.Errorf("decoding conversation record: %w", err)
	}
	return &rec, entry.Revision(), nil
}

// Read implements Store.
func (s *KVStore) Read(ctx context.Context, deviceID string) ([]Message, error) {
	rec, _, err := s.get(ctx, deviceID)
	if err != nil || rec == nil {
		return []Message{}, err
	}
	return rec.Messages, nil
}

// Append implements Store.
func (s *KVStore) Append(ctx context.Context, deviceID, user, assistant string) error {
	now := s.now().UTC()
	added := Pair(user, assistant, now)

	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		rec, rev, err := s.get(ctx, deviceID)
		if err != nil {
			return err
		}

		if rec == nil {
			data, err := json.Marshal(Record{DeviceID: deviceID, Messages: Window(nil, s.limit, added...), LastActivity: now})
			if err != nil {
				return err
			}
			if _, lastErr = s.kv.Create(ctx, key(deviceID), data); lastErr == nil {
				return nil
			}
			continue
		}

		rec.Messages = Window(rec.Messages, s.limit, added...)
		rec.LastActivity = now
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, lastErr = s.kv.Update(ctx, key(deviceID), data, rev); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("appending conversation after %d attempts: %w", maxUpdateAttempts, lastErr)
}

// Clear implements Store.
func (s *KVStore) Clear(ctx context.Context, deviceID string) error {
	return s.kv.Delete(ctx, key(deviceID))
}

// Close implements Store; the connection is owned by the caller.
func (s *KVStore) Close() error { return nil }
