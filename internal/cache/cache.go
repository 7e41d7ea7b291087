// Package cache stores serialized analysis results so repeated requests for
// the same region, period and asset skip the remote platform.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Cache is a byte-oriented result cache. Get reports a miss with ok == false
// and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Close() error
}

// Key derives a stable cache key from a kind and any JSON-encodable request.
// Map keys are sorted by encoding/json, so equal requests hash equally.
func Key(kind string, req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", eris.Wrapf(err, "cache: key for %s", kind)
	}
	sum := sha256.Sum256(data)
	return kind + ":" + hex.EncodeToString(sum[:]), nil
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Close() error { return nil }
