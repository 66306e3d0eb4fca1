package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/diagnovera/diagnovera/internal/application/library"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

const librarySnapshotKey = "library:snapshot"

// LibraryCache stores the full reference-library snapshot as one JSON value.
// One key keeps invalidation trivial and matches the access pattern: the
// diagnosis path always needs every profile.
type LibraryCache struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
	logger    logging.Logger
}

// NewLibraryCache creates a LibraryCache.  A zero ttl means no expiry; the
// cache is then bounded only by explicit invalidation on library mutation.
func NewLibraryCache(client *Client, keyPrefix string, ttl time.Duration, log logging.Logger) *LibraryCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &LibraryCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    log.Named("library_cache"),
	}
}

var _ library.Cache = (*LibraryCache)(nil)

func (c *LibraryCache) key() string {
	return c.keyPrefix + librarySnapshotKey
}

// GetLibrary returns the cached snapshot.  A miss is a not-found error so
// callers can distinguish "no snapshot" from "empty library".
func (c *LibraryCache) GetLibrary(ctx context.Context) ([]clinical.ProfileRecord, error) {
	data, err := c.client.Raw().Get(ctx, c.key()).Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			return nil, errors.NotFound("library snapshot not cached")
		}
		return nil, errors.Wrap(err, errors.CodeCacheError, "failed to read library snapshot")
	}

	var recs []clinical.ProfileRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		// A corrupt snapshot behaves like a miss after self-healing.
		c.logger.Warn("discarding corrupt library snapshot", logging.Err(err))
		_ = c.client.Raw().Del(ctx, c.key()).Err()
		return nil, errors.NotFound("library snapshot not cached")
	}
	return recs, nil
}

func (c *LibraryCache) SetLibrary(ctx context.Context, recs []clinical.ProfileRecord) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to encode library snapshot")
	}
	if err := c.client.Raw().Set(ctx, c.key(), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to write library snapshot")
	}
	return nil
}

func (c *LibraryCache) Invalidate(ctx context.Context) error {
	if err := c.client.Raw().Del(ctx, c.key()).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to invalidate library snapshot")
	}
	return nil
}
