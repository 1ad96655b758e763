// Package battery keeps the last known battery level of the vehicle.
package battery

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smart-ev/chargectl/core/logger"
	"github.com/smart-ev/chargectl/core/metrics"
	"github.com/smart-ev/chargectl/core/model"
)

// Tracker holds the most recent reading received on the vehicle state topic.
// Transport callbacks write, the control loop reads; both sides are
// serialized by an internal lock so readers always see a complete reading.
// A reading is retained until a newer valid one replaces it.
type Tracker struct {
	mu    sync.RWMutex
	state model.BatteryState
	known bool

	log  logger.Logger
	sink metrics.BatteryRecorder
}

// NewTracker returns an empty tracker. sink may be nil.
func NewTracker(log logger.Logger, sink metrics.BatteryRecorder) *Tracker {
	return &Tracker{log: log, sink: sink}
}

// HandleMessage parses a raw payload from the state topic: the battery level
// as an integer in UTF-8 text, surrounding whitespace allowed. Malformed or
// out-of-range payloads are dropped without touching the last good reading.
func (t *Tracker) HandleMessage(payload []byte) {
	text := strings.TrimSpace(string(payload))
	percent, err := strconv.Atoi(text)
	if err != nil {
		t.log.Warnf("dropping malformed battery payload %q", text)
		t.record(0, false)
		return
	}
	if percent < 0 || percent > 100 {
		t.log.Warnf("dropping out-of-range battery level %d", percent)
		t.record(percent, false)
		return
	}

	t.mu.Lock()
	first := !t.known
	t.state = model.BatteryState{Percent: percent, ObservedAt: time.Now()}
	t.known = true
	t.mu.Unlock()

	if first {
		t.log.Infof("initial battery level: %d%%", percent)
	} else {
		t.log.Debugf("battery level: %d%%", percent)
	}
	t.record(percent, true)
}

// Current returns the last accepted reading. ok is false until the first
// valid payload arrives.
func (t *Tracker) Current() (model.BatteryState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state, t.known
}

// Age reports how old the last reading is relative to now.
func (t *Tracker) Age(now time.Time) (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.known {
		return 0, false
	}
	return now.Sub(t.state.ObservedAt), true
}

func (t *Tracker) record(percent int, valid bool) {
	if t.sink == nil {
		return
	}
	_ = t.sink.RecordBattery(metrics.BatteryEvent{Percent: percent, Valid: valid, Time: time.Now()})
}
