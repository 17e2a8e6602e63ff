// Package lifecycle holds the process drain state read by readiness and the
// live handler during graceful shutdown.
package lifecycle

import (
	"sync/atomic"
	"time"
)

type Lifecycle struct {
	// drainingSince is the unix nano time draining began, or 0.
	drainingSince atomic.Int64
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	if !draining {
		l.drainingSince.Store(0)
		return
	}
	l.drainingSince.CompareAndSwap(0, time.Now().UnixNano())
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.drainingSince.Load() != 0
}

// DrainingSince reports when draining began. The zero time means the process
// is not draining.
func (l *Lifecycle) DrainingSince() time.Time {
	if l == nil {
		return time.Time{}
	}
	ns := l.drainingSince.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
