package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/pkg/errs"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseBackoff: 50 * time.Millisecond,
		MaxBackoff:  800 * time.Millisecond,
	}
}

// Mutation applies an intent to a freshly read document. It returns the result, whether the
// document must be written, and an error that aborts the loop without retrying.
// It runs once per attempt and must not carry decisions over from a previous attempt.
type Mutation[T any] func(doc *grid.Document) (T, bool, error)

// CAS bundles the store with the retry policy every document write goes through.
type CAS struct {
	store    DocumentStore
	policy   RetryPolicy
	recorder Recorder
}

func NewCAS(store DocumentStore, policy RetryPolicy, recorder Recorder) *CAS {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &CAS{store: store, policy: policy, recorder: recorder}
}

// Read returns the current document without writing.
func (c *CAS) Read(ctx context.Context) (*grid.Document, Version, error) {
	return c.store.Read(ctx)
}

// WithCASRetry runs read -> mutate -> conditional write, re-reading and re-applying the
// mutation on version conflicts until the policy's attempt bound is reached.
func WithCASRetry[T any](ctx context.Context, c *CAS, op string, mutate Mutation[T]) (T, error) {
	var zero T

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		doc, version, err := c.store.Read(ctx)
		if err != nil {
			c.recorder.CASAttempt(op, "read_error")
			return zero, errs.Wrap(err, "read grid document")
		}

		result, write, err := mutate(doc)
		if err != nil {
			c.recorder.CASAttempt(op, "rejected")
			return zero, err
		}
		if !write {
			c.recorder.CASAttempt(op, "noop")
			return result, nil
		}

		_, err = c.store.Write(ctx, doc, version)
		if err == nil {
			c.recorder.CASAttempt(op, "committed")
			return result, nil
		}
		if !errs.Is(err, ErrVersionConflict) {
			c.recorder.CASAttempt(op, "write_error")
			return zero, errs.Wrap(err, "write grid document")
		}

		c.recorder.CASAttempt(op, "conflict")
		if attempt == c.policy.MaxAttempts-1 {
			break
		}

		waitTime := c.policy.backoff(attempt)
		slog.Warn("retrying grid write after version conflict",
			"op", op,
			"attempt", attempt+1,
			"wait_ms", waitTime.Milliseconds())

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(waitTime):
		}
	}

	slog.Error("grid write failed after max attempts", "op", op, "attempts", c.policy.MaxAttempts)
	return zero, errs.Wrapf(ErrStoreContention, "%s: %d attempts", op, c.policy.MaxAttempts)
}

// backoff doubles from BaseBackoff per attempt with up to 20% jitter, capped at MaxBackoff.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	waitTime := time.Duration(1<<attempt) * p.BaseBackoff
	if p.MaxBackoff > 0 && waitTime > p.MaxBackoff {
		waitTime = p.MaxBackoff
	}
	jitter := cryptoRandInt63n(int64(waitTime / 5))
	return waitTime + time.Duration(jitter)
}

func cryptoRandInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	// #nosec G115 -- high bit masked before conversion
	return int64(binary.BigEndian.Uint64(buf[:])&0x7FFFFFFFFFFFFFFF) % n
}
