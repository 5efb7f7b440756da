// Package engine runs the garden: a single-writer Simulation that owns
// all garden state, and an Engine that ticks it on a timer.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Tick schedule, in ticks.
const (
	DefaultInterval = 3 * time.Second

	WaterEvery = 6 // Random auto-watering pass
	EventEvery = 5 // Random garden event
)

// Game clock: one real minute is one game hour, starting Day 1 at 6 AM.
const (
	GameMinutesPerSecond = 1
	GameStartHour        = 6
)

// Engine fires ticks on a timer. It owns no garden state; the callbacks
// hand work to the Simulation. Start and Stop may be called repeatedly.
type Engine struct {
	Interval time.Duration
	Logger   *slog.Logger // Defaults to slog.Default()

	// Callbacks, populated during setup. OnTick runs on the timer
	// goroutine and must not block.
	OnTick  func()
	OnStart func()
	OnStop  func()

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	fired   atomic.Uint64
	created time.Time
}

// NewEngine creates a stopped engine.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{Interval: interval, created: time.Now()}
}

// Start begins firing ticks. Reports false if already running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.running = true
	go e.run(e.stop, e.done)

	e.logger().Info("automation started", "interval", e.Interval, "fired", e.fired.Load())
	if e.OnStart != nil {
		e.OnStart()
	}
	return true
}

// Stop halts the timer and waits for the timer goroutine to exit.
// Reports false if it was not running.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false
	}
	close(e.stop)
	<-e.done
	e.running = false

	e.logger().Info("automation stopped", "fired", e.fired.Load())
	if e.OnStop != nil {
		e.OnStop()
	}
	return true
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Running reports whether the timer is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Fired returns how many ticks the timer has fired in total.
func (e *Engine) Fired() uint64 {
	return e.fired.Load()
}

// Uptime returns the time since the engine was created.
func (e *Engine) Uptime() time.Duration {
	return time.Since(e.created)
}

func (e *Engine) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(e.Interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			e.fired.Add(1)
			if e.OnTick != nil {
				e.OnTick()
			}
		}
	}
}

// GameTime formats the in-game clock after elapsed real time, e.g.
// "Day 1, 6:00 AM".
func GameTime(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	gameMinutes := int(elapsed/time.Second) * GameMinutesPerSecond
	totalHours := gameMinutes / 60
	day := totalHours/24 + 1
	hour := (totalHours%24 + GameStartHour) % 24
	minute := gameMinutes % 60

	ampm := "AM"
	if hour >= 12 {
		ampm = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("Day %d, %d:%02d %s", day, display, minute, ampm)
}

// SessionTime formats real elapsed time as "Session: Xh Ym".
func SessionTime(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	minutes := int(elapsed / time.Minute)
	return fmt.Sprintf("Session: %dh %dm", minutes/60, minutes%60)
}
