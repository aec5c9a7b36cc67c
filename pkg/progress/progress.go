package progress

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
)

// Sink receives progress reports from long-running codec operations, and tells them when to stop.
// Codecs poll Cancelled once per track or object, so cancellation is cooperative.
type Sink interface {
	SetMax(n int)
	SetValue(n int)
	Cancelled() bool
}

// Nop ignores progress and never cancels
type Nop struct{}

func (Nop) SetMax(n int)    {}
func (Nop) SetValue(n int)  {}
func (Nop) Cancelled() bool { return false }

// OrNop returns s, or Nop if s is nil
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Tracker records progress, and cancels when its context is done.
// Its fields can be read from another goroutine while an operation runs.
type Tracker struct {
	ctx   context.Context
	max   atomic.Int64
	value atomic.Int64
}

func NewTracker(ctx context.Context) *Tracker {
	return &Tracker{ctx: ctx}
}

func (t *Tracker) SetMax(n int)   { t.max.Store(int64(n)) }
func (t *Tracker) SetValue(n int) { t.value.Store(int64(n)) }

func (t *Tracker) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Fraction returns progress in the range [0,1]
func (t *Tracker) Fraction() float64 {
	m := t.max.Load()
	if m <= 0 {
		return 0
	}
	return min(1, float64(t.value.Load())/float64(m))
}

// LogSink writes progress to a log, at most once per interval
type LogSink struct {
	Log      logs.Log
	Label    string
	Interval time.Duration
	Inner    Sink // Cancellation is delegated here. May be nil.

	max      int
	lastTime time.Time
}

func NewLogSink(log logs.Log, label string, inner Sink) *LogSink {
	return &LogSink{
		Log:      log,
		Label:    label,
		Interval: 2 * time.Second,
		Inner:    OrNop(inner),
	}
}

func (l *LogSink) SetMax(n int) {
	l.max = n
	l.lastTime = time.Now()
	l.Inner.SetMax(n)
}

func (l *LogSink) SetValue(n int) {
	l.Inner.SetValue(n)
	now := time.Now()
	if now.Sub(l.lastTime) < l.Interval && n != l.max {
		return
	}
	l.lastTime = now
	l.Log.Infof("%v: %v / %v", l.Label, n, l.max)
}

func (l *LogSink) Cancelled() bool {
	return l.Inner.Cancelled()
}

// CancelAfter reports cancellation after Cancelled has been called N times.
// Handy for exercising partial-success paths.
type CancelAfter struct {
	N     int
	calls int
}

func (c *CancelAfter) SetMax(n int)   {}
func (c *CancelAfter) SetValue(n int) {}

func (c *CancelAfter) Cancelled() bool {
	c.calls++
	return c.calls > c.N
}
