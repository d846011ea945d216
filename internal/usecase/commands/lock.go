package commands

import (
	"context"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/pkg/clock"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"
)

var ErrOwnerRequired = errs.Mark(errs.New("owner required"), errs.ErrUnauthorized)

// LeaseSettings carries the lease bounds shared by locking, finalization and checkout.
type LeaseSettings struct {
	Policy        grid.LeasePolicy
	HeldGrace     time.Duration
	FinalizeGrace time.Duration
}

func DefaultLeaseSettings() LeaseSettings {
	return LeaseSettings{
		Policy:        grid.DefaultLeasePolicy(),
		HeldGrace:     5 * time.Second,
		FinalizeGrace: time.Second,
	}
}

type AcquireResult struct {
	Granted    []int
	Conflicts  []int
	RegionID   string
	LeaseUntil time.Time
	HardExpiry time.Time
}

type RenewResult struct {
	Renewed    []int
	Lost       []int
	LeaseUntil time.Time
	HardExpiry time.Time
}

type LockCommands interface {
	Acquire(ctx context.Context, owner string, cells []int, lease time.Duration) (*AcquireResult, error)
	Renew(ctx context.Context, owner string, cells []int, lease time.Duration) (*RenewResult, error)
	Release(ctx context.Context, owner string, cells []int) ([]int, error)
	IsHeld(ctx context.Context, owner string, cells []int, grace time.Duration) (bool, error)
}

type lockCommandsImpl struct {
	cas      *shared.CAS
	clock    clock.Clock
	lease    LeaseSettings
	recorder shared.Recorder
}

func NewLockCommands(cas *shared.CAS, clock clock.Clock, lease LeaseSettings, recorder shared.Recorder) LockCommands {
	return &lockCommandsImpl{
		cas:      cas,
		clock:    clock,
		lease:    lease,
		recorder: recorder,
	}
}

// Acquire never fails on cell conflicts; they come back in the result.
func (l *lockCommandsImpl) Acquire(ctx context.Context, owner string, cells []int, lease time.Duration) (*AcquireResult, error) {
	selection, err := validateSelection(owner, cells)
	if err != nil {
		return nil, err
	}
	lease = l.lease.Policy.Clamp(lease)

	res, err := shared.WithCASRetry(ctx, l.cas, "acquire", func(doc *grid.Document) (grid.AcquireResult, bool, error) {
		now := l.clock.Now()
		doc.CollectGarbage(now)
		r := doc.Acquire(owner, selection, lease, l.lease.Policy.MaxDuration, now)
		return r, len(r.Granted) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	l.recorder.LockResult("acquire", len(res.Granted), len(res.Conflicts))
	return &AcquireResult{
		Granted:    res.Granted,
		Conflicts:  res.Conflicts,
		RegionID:   res.RegionID,
		LeaseUntil: res.LeaseUntil,
		HardExpiry: res.HardExpiry,
	}, nil
}

// Renew is the heartbeat: it extends held cells up to their hard cap and never takes new ones.
func (l *lockCommandsImpl) Renew(ctx context.Context, owner string, cells []int, lease time.Duration) (*RenewResult, error) {
	selection, err := validateSelection(owner, cells)
	if err != nil {
		return nil, err
	}
	lease = l.lease.Policy.Clamp(lease)

	res, err := shared.WithCASRetry(ctx, l.cas, "renew", func(doc *grid.Document) (grid.RenewResult, bool, error) {
		now := l.clock.Now()
		doc.CollectGarbage(now)
		r := doc.Renew(owner, selection, lease, now)
		return r, len(r.Renewed) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	l.recorder.LockResult("renew", len(res.Renewed), len(res.Lost))
	return &RenewResult{
		Renewed:    res.Renewed,
		Lost:       res.Lost,
		LeaseUntil: res.LeaseUntil,
		HardExpiry: res.HardExpiry,
	}, nil
}

func (l *lockCommandsImpl) Release(ctx context.Context, owner string, cells []int) ([]int, error) {
	selection, err := validateSelection(owner, cells)
	if err != nil {
		return nil, err
	}

	released, err := shared.WithCASRetry(ctx, l.cas, "release", func(doc *grid.Document) ([]int, bool, error) {
		r := doc.Release(owner, selection)
		if len(r) > 0 {
			doc.CollectGarbage(l.clock.Now())
		}
		return r, len(r) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	l.recorder.LockResult("release", len(released), 0)
	return released, nil
}

func (l *lockCommandsImpl) IsHeld(ctx context.Context, owner string, cells []int, grace time.Duration) (bool, error) {
	selection, err := validateSelection(owner, cells)
	if err != nil {
		return false, err
	}
	doc, _, err := l.cas.Read(ctx)
	if err != nil {
		return false, errs.Wrap(err, "read grid document")
	}
	return doc.IsHeld(owner, selection, grace, l.clock.Now()), nil
}

func validateSelection(owner string, cells []int) ([]int, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	return grid.NormalizeCells(cells)
}
