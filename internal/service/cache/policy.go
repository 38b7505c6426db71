package cache

import (
	"time"

	"FinScore/internal/service/session"
)

// Policy decides how long a result computed at now stays valid. A positive
// ttl overrides the policy default but never extends past a session boundary.
type Policy interface {
	ExpiresAt(now time.Time, ttl time.Duration) time.Time
}

// SessionPolicy keeps intraday results for a few minutes and never past the
// close. Results computed outside the session last until the next open.
type SessionPolicy struct {
	cal         *session.Calendar
	intradayTTL time.Duration
}

func NewSessionPolicy(cal *session.Calendar, intradayTTL time.Duration) *SessionPolicy {
	if intradayTTL <= 0 {
		intradayTTL = 5 * time.Minute
	}
	return &SessionPolicy{cal: cal, intradayTTL: intradayTTL}
}

func (p *SessionPolicy) ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	if closeAt, open := p.cal.SessionClose(now); open {
		if ttl <= 0 {
			ttl = p.intradayTTL
		}
		return minTime(now.Add(ttl), closeAt)
	}
	next := p.cal.NextOpen(now)
	if ttl > 0 {
		return minTime(now.Add(ttl), next)
	}
	return next
}

// FixedPolicy applies a constant TTL. It ignores sessions and suits tests and
// always-on markets.
type FixedPolicy struct{ TTL time.Duration }

func (p FixedPolicy) ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = p.TTL
	}
	return now.Add(ttl)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
