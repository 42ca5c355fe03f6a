// Package clock provides the market's time sources: an in-process simulation
// clock that can be advanced by hand or on a timer, and a client that follows
// a remote clock server.
package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotIncreasing = errors.New("time must move forward")
	ErrInvalidAuto   = errors.New("auto interval and delta must be positive")
)

type Mode string

const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
)

type Status struct {
	CurrentTime  int64    `json:"current_time"`
	Mode         Mode     `json:"mode"`
	Running      bool     `json:"running"`
	Subscribers  int      `json:"subscribers"`
	AutoInterval *float64 `json:"auto_interval"`
	AutoDelta    int64    `json:"auto_delta,omitempty"`
}

// SimulationClock is an integer clock that only moves when told to, either by
// Advance/Tick or by the auto-advance loop. Reset is the one operation that
// may move it backwards.
type SimulationClock struct {
	mu           sync.Mutex
	now          int64
	mode         Mode
	autoInterval time.Duration
	autoDelta    int64
	stop         chan struct{}
	done         chan struct{}

	subs    map[int]chan int64
	nextSub int

	logger *zap.Logger
}

func NewSimulationClock(start int64, logger *zap.Logger) *SimulationClock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationClock{
		now:    start,
		mode:   ModeManual,
		subs:   make(map[int]chan int64),
		logger: logger,
	}
}

func (c *SimulationClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimulationClock) Advance(to int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked(to)
}

// Tick advances by delta and returns the new time.
func (c *SimulationClock) Tick(delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.advanceLocked(c.now + delta); err != nil {
		return c.now, err
	}
	return c.now, nil
}

func (c *SimulationClock) advanceLocked(to int64) error {
	if to <= c.now {
		return fmt.Errorf("%w: cannot advance to %d, current time is %d", ErrNotIncreasing, to, c.now)
	}
	c.now = to
	c.notifyLocked()
	return nil
}

// Reset stops auto mode and sets the clock to t.
func (c *SimulationClock) Reset(t int64) {
	c.StopAuto()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
	c.notifyLocked()
}

// StartAuto ticks the clock by delta every interval until StopAuto. Calling it
// while already running is a no-op.
func (c *SimulationClock) StartAuto(interval time.Duration, delta int64) error {
	if interval <= 0 || delta <= 0 {
		return ErrInvalidAuto
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	c.mode = ModeAuto
	c.autoInterval = interval
	c.autoDelta = delta
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.autoLoop(interval, delta, c.stop, c.done)

	c.logger.Info("Auto clock started", zap.Duration("interval", interval), zap.Int64("delta", delta))
	return nil
}

func (c *SimulationClock) StopAuto() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mode = ModeManual
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	c.logger.Info("Auto clock stopped")
}

func (c *SimulationClock) autoLoop(interval time.Duration, delta int64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := c.Tick(delta); err != nil {
				c.logger.Warn("Auto tick failed", zap.Error(err))
			}
		}
	}
}

func (c *SimulationClock) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		CurrentTime: c.now,
		Mode:        c.mode,
		Running:     c.stop != nil,
		Subscribers: len(c.subs),
	}
	if c.mode == ModeAuto {
		secs := c.autoInterval.Seconds()
		s.AutoInterval = &secs
		s.AutoDelta = c.autoDelta
	}
	return s
}

// Subscribe returns a channel that receives the time after every change and
// a function that cancels the subscription. A slow subscriber only ever sees
// the latest value.
func (c *SimulationClock) Subscribe() (<-chan int64, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan int64, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *SimulationClock) notifyLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- c.now:
		default:
			// drop the stale value and replace it
			select {
			case <-ch:
			default:
			}
			ch <- c.now
		}
	}
}
