package durable

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// KVJournal stores records in a NATS JetStream key-value bucket, so step
// results survive process restarts and are shared by every worker.
type KVJournal struct {
	kv jetstream.KeyValue
}

var _ Journal = (*KVJournal)(nil)

// NewKVJournal opens (creating if needed) the bucket.
func NewKVJournal(ctx context.Context, js jetstream.JetStream, bucket string) (*KVJournal, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "genetix durable step records",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("open step bucket %q: %w", bucket, err)
	}
	return &KVJournal{kv: kv}, nil
}

// kvKey encodes both parts since KV keys only allow [-/_=.a-zA-Z0-9].
func kvKey(runID, key string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(runID)) + "." + enc.EncodeToString([]byte(key))
}

func (j *KVJournal) Load(ctx context.Context, runID, key string) (Record, bool, error) {
	entry, err := j.kv.Get(ctx, kvKey(runID, key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load step %q: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode step %q: %w", key, err)
	}
	return rec, true, nil
}

func (j *KVJournal) Save(ctx context.Context, runID, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode step %q: %w", key, err)
	}
	if _, err := j.kv.Create(ctx, kvKey(runID, key), data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrAlreadyRecorded
		}
		return fmt.Errorf("save step %q: %w", key, err)
	}
	return nil
}
