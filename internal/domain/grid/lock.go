package grid

import "time"

// Lock is a per-cell lease. SoftExpiry never passes HardExpiry, and HardExpiry is fixed
// when the acquisition cycle starts.
type Lock struct {
	Owner           string
	FirstAcquiredAt time.Time
	HardExpiry      time.Time
	SoftExpiry      time.Time
	RegionID        string
}

// ActiveAt reports whether the lock still excludes other owners.
func (l Lock) ActiveAt(now time.Time) bool {
	return now.Before(l.SoftExpiry)
}

func (l Lock) HardExpiredAt(now time.Time) bool {
	return !now.Before(l.HardExpiry)
}

// renewableBy reports whether owner may extend this lock without starting a new cycle.
func (l Lock) renewableBy(owner string, now time.Time) bool {
	return l.Owner == owner && !l.HardExpiredAt(now)
}

type LeasePolicy struct {
	Default     time.Duration
	Min         time.Duration
	MaxDuration time.Duration
}

func DefaultLeasePolicy() LeasePolicy {
	return LeasePolicy{
		Default:     3 * time.Minute,
		Min:         15 * time.Second,
		MaxDuration: 10 * time.Minute,
	}
}

// Clamp maps a requested lease onto [Min, MaxDuration]; non-positive requests get Default.
func (p LeasePolicy) Clamp(requested time.Duration) time.Duration {
	if requested <= 0 {
		return p.Default
	}
	return min(max(requested, p.Min), p.MaxDuration)
}
