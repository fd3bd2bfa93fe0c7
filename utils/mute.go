package utils

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BatchMute lets at most max events through per interval and counts, per
// kind, the events it held back. It is safe for concurrent use.
type BatchMute struct {
	lock          sync.Mutex
	batchTime     time.Time
	resetInterval time.Duration
	ctr           int
	max           int
	skipped       map[string]int
}

// MuteResult is the outcome of one BatchMute.Increment.
type MuteResult struct {
	// Muted is set when the event must not be logged.
	Muted bool
	// Started is set on the event that turned muting on for the batch.
	Started bool
	// Skipped holds what the previous batch muted, per kind. It is only
	// filled on the first event of a new batch.
	Skipped map[string]int
}

// SkippedTotal sums Skipped.
func (r MuteResult) SkippedTotal() int {
	var total int
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Fields renders Skipped as log fields.
func (r MuteResult) Fields() logrus.Fields {
	kinds := make([]string, 0, len(r.Skipped))
	for kind := range r.Skipped {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	var b strings.Builder
	for i, kind := range kinds {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(kind)
	}
	return logrus.Fields{
		"skipped":       r.SkippedTotal(),
		"skipped_kinds": b.String(),
	}
}

func (b *BatchMute) increment(kind string, t time.Time) (r MuteResult) {
	if b.max == 0 || b.resetInterval == 0 {
		return r
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	if t.Sub(b.batchTime) > b.resetInterval {
		if len(b.skipped) > 0 {
			r.Skipped = b.skipped
			b.skipped = nil
		}
		b.ctr = 0
		b.batchTime = t
	}
	b.ctr++
	if b.ctr <= b.max {
		return r
	}

	if b.skipped == nil {
		b.skipped = make(map[string]int)
	}
	b.skipped[kind]++
	r.Muted = true
	r.Started = b.ctr == b.max+1
	return r
}

// Increment records a single event of the given kind.
func (b *BatchMute) Increment(kind string) MuteResult {
	return b.increment(kind, time.Now().UTC())
}

// Log reports one event through logFn unless the batch muted it. The muting
// transition and the skipped summary of the previous batch go to logger.
func (b *BatchMute) Log(logger logrus.FieldLogger, kind, what string, logFn func()) {
	r := b.Increment(kind)
	if len(r.Skipped) > 0 {
		logger.WithFields(r.Fields()).Warnf("skipped %d %s", r.SkippedTotal(), what)
	}
	if r.Started {
		logger.Warnf("too many %s, muting", what)
	}
	if !r.Muted {
		logFn()
	}
}

// NewBatchMute creates a BatchMute with a reset interval and max count.
// A zero interval or count disables muting.
func NewBatchMute(resetInterval time.Duration, max int) *BatchMute {
	return &BatchMute{
		batchTime:     time.Now().UTC(),
		resetInterval: resetInterval,
		max:           max,
	}
}
