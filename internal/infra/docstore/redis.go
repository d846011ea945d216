package docstore

import (
	"context"
	"strconv"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/infra"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/redis/go-redis/v9"
)

const (
	fieldBody    = "body"
	fieldVersion = "version"
)

// RedisStore keeps the document in one hash {body, version}. Writes WATCH the key and
// commit through MULTI/EXEC, so a concurrent writer aborts the transaction.
type RedisStore struct {
	rdb   redis.UniversalClient
	key   string
	codec *Codec
}

func NewRedisStore(rdb redis.UniversalClient, keyPrefix, documentID string, codec *Codec) *RedisStore {
	return &RedisStore{rdb: rdb, key: keyPrefix + ":grid:" + documentID, codec: codec}
}

func (s *RedisStore) Read(ctx context.Context) (*grid.Document, shared.Version, error) {
	vals, err := s.rdb.HMGet(ctx, s.key, fieldBody, fieldVersion).Result()
	if err != nil {
		return nil, shared.NoVersion, unavailable("failed to read grid document", err)
	}
	body, _ := vals[0].(string)
	version, _ := vals[1].(string)
	if version == "" {
		return grid.NewDocument(), shared.NoVersion, nil
	}
	doc, err := s.codec.Decode([]byte(body))
	if err != nil {
		return nil, shared.NoVersion, err
	}
	return doc, shared.Version(version), nil
}

func (s *RedisStore) Write(ctx context.Context, doc *grid.Document, expected shared.Version) (shared.Version, error) {
	body, err := s.codec.Encode(doc)
	if err != nil {
		return shared.NoVersion, err
	}

	var next int64
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, s.key, fieldVersion).Result()
		if err != nil && !errs.Is(err, redis.Nil) {
			return unavailable("failed to read grid document version", err)
		}
		if shared.Version(current) != expected {
			return conflict(expected)
		}

		var n int64
		if current != "" {
			if n, err = strconv.ParseInt(current, 10, 64); err != nil {
				return errs.Wrapf(err, "malformed stored version %q", current)
			}
		}
		next = n + 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, fieldBody, body, fieldVersion, strconv.FormatInt(next, 10))
			return nil
		})
		return err
	}, s.key)

	switch {
	case err == nil:
		return shared.Version(strconv.FormatInt(next, 10)), nil
	case errs.Is(err, redis.TxFailedErr):
		return shared.NoVersion, conflict(expected)
	case errs.Is(err, shared.ErrVersionConflict):
		return shared.NoVersion, err
	default:
		return shared.NoVersion, unavailable("failed to write grid document", err)
	}
}

func unavailable(msg string, err error) error {
	if errs.Is(err, errs.ErrStoreUnavailable) {
		return err
	}
	return errs.Mark(infra.WrapRepoErr(msg, err), errs.ErrStoreUnavailable)
}
