package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/mini-garden/internal/defense"
	"github.com/talgya/mini-garden/internal/entropy"
	"github.com/talgya/mini-garden/internal/events"
	"github.com/talgya/mini-garden/internal/garden"
)

// Options configures a Simulation. Tick schedule fields count ticks;
// zero or negative disables that step.
type Options struct {
	Rows, Cols int

	WaterEvery      int // Ticks between random auto-watering passes
	WaterOdds       int // Each live plant is auto-watered with probability 1/WaterOdds
	InfestOdds      int // Random single-cell infestation with probability 1/InfestOdds per tick
	EventEvery      int // Ticks between random events
	WaterBatchTicks int // Ticks between auto-watering log lines
	ReportTicks     int // Ticks between state reports and stats samples

	RecentEvents int           // Journal entries kept in memory
	StopTimeout  time.Duration // Bound on waiting for in-flight work

	Logger *slog.Logger
	Rand   entropy.Source
	Sink   Sink
	Clock  func() time.Time
}

// DefaultOptions returns the reference schedule on a 5×5 garden.
func DefaultOptions() Options {
	return Options{
		Rows:            garden.DefaultRows,
		Cols:            garden.DefaultCols,
		WaterEvery:      WaterEvery,
		WaterOdds:       4,
		InfestOdds:      50,
		EventEvery:      EventEvery,
		WaterBatchTicks: 4,
		ReportTicks:     1200,
		RecentEvents:    100,
		StopTimeout:     3 * time.Second,
	}
}

// Sink receives journal records and stats samples. Implementations must
// not block; the simulation calls them from its worker.
type Sink interface {
	SaveEvents(events []Event)
	SaveStats(sample StatsSample)
}

// StatsSample is one periodic row of garden statistics.
type StatsSample struct {
	Cycle       uint64    `json:"cycle"`
	Time        time.Time `json:"time"`
	Temperature int       `json:"temperature"`
	Live        int       `json:"live"`
	Dead        int       `json:"dead"`
	Empty       int       `json:"empty"`
	Planted     int       `json:"planted"`
	Watered     int       `json:"watered"`
	Infested    int       `json:"infested"`
}

// InitResult reports an Initialize call.
type InitResult struct {
	Rows    int      `json:"rows"`
	Cols    int      `json:"cols"`
	Planted int      `json:"planted"`
	Skipped []string `json:"skipped,omitempty"`
}

// PestResult reports where a pest was placed.
type PestResult struct {
	Pos     garden.Pos     `json:"pos"`
	Species garden.Species `json:"species"`
	Kind    string         `json:"kind"`
}

// PlantsInfo describes the seeded plants: names, water needs and pest
// vulnerabilities, index-aligned.
type PlantsInfo struct {
	Plants           []string   `json:"plants"`
	WaterRequirement []int      `json:"waterRequirement"`
	Parasites        [][]string `json:"parasites"`
}

// Simulation owns the garden. A single worker goroutine applies every
// mutation, ticks and manual operations alike, in FIFO order; after each
// one it publishes an immutable Snapshot. All exported methods are safe
// for concurrent use.
type Simulation struct {
	opts Options
	log  *slog.Logger
	rng  entropy.Source
	sink Sink
	now  func() time.Time
	born time.Time

	// Worker-owned.
	grid       *garden.Grid
	spray      defense.Spray
	ins        defense.Insulation
	events     *events.Engine
	cycle      uint64
	version    uint64
	automated  bool
	waterBatch int
	pending    []Event

	// Test hook, called before every step.
	beforeStep func(name string)

	queue *queue
	done  chan struct{}
	snap  atomic.Pointer[Snapshot]

	mu      sync.RWMutex
	ring    []Event
	subs    map[int]chan Event
	nextSub int
	plants  PlantsInfo

	engine    *Engine
	closeOnce sync.Once
}

// NewSimulation creates an all-soil garden and starts its worker.
func NewSimulation(opts Options) *Simulation {
	def := DefaultOptions()
	if opts.Rows <= 0 || opts.Cols <= 0 {
		opts.Rows, opts.Cols = def.Rows, def.Cols
	}
	if opts.RecentEvents <= 0 {
		opts.RecentEvents = def.RecentEvents
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = def.StopTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = entropy.Crypto{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Simulation{
		opts:   opts,
		log:    opts.Logger,
		rng:    opts.Rand,
		sink:   opts.Sink,
		now:    opts.Clock,
		grid:   garden.NewGrid(opts.Rows, opts.Cols, opts.Rand),
		events: events.NewEngine(opts.Rand),
		queue:  newQueue(),
		done:   make(chan struct{}),
		subs:   make(map[int]chan Event),
	}
	s.born = s.now()
	s.publish()
	go s.run()
	return s
}

// Snapshot returns the latest published state. Two calls with no
// command applied in between return the same snapshot.
func (s *Simulation) Snapshot() *Snapshot {
	return s.snap.Load()
}

// CurrentTick returns the number of ticks applied so far.
func (s *Simulation) CurrentTick() uint64 {
	return s.snap.Load().Cycle
}

// Started returns when the simulation was created.
func (s *Simulation) Started() time.Time {
	return s.born
}

// Plants returns metadata for the plants of the last Initialize.
func (s *Simulation) Plants() PlantsInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PlantsInfo{
		Plants:           append([]string{}, s.plants.Plants...),
		WaterRequirement: append([]int{}, s.plants.WaterRequirement...),
		Parasites:        append([][]string{}, s.plants.Parasites...),
	}
}

// RecentEvents returns up to n of the latest journal entries, oldest
// first. n <= 0 returns all that are kept.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.ring) > n {
		start = len(s.ring) - n
	}
	return append([]Event(nil), s.ring[start:]...)
}

// Subscribe registers for journal entries as they are published. Slow
// subscribers miss entries rather than stall the garden.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, 64)
	if s.subs == nil {
		close(ch)
		return -1, ch
	}
	s.nextSub++
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Automate wires an Engine's callbacks to this simulation.
func (s *Simulation) Automate(e *Engine) {
	s.engine = e
	if e.Logger == nil {
		e.Logger = s.log
	}
	interval := e.Interval
	e.OnTick = s.SubmitTick
	e.OnStart = func() { s.automationStarted(interval) }
	e.OnStop = s.automationStopped
}

// SubmitTick queues one tick. It never blocks.
func (s *Simulation) SubmitTick() {
	c := newCommand("tick", nil)
	c.tick = true
	if err := s.queue.push(c); err != nil {
		s.log.Debug("tick dropped", "error", err)
	}
}

// Tick applies one tick and waits for it.
func (s *Simulation) Tick(ctx context.Context) error {
	c := newCommand("tick", nil)
	c.tick = true
	return s.wait(ctx, c)
}

// Shutdown stops automation and the worker. Queued manual operations are
// applied if they finish within the stop timeout; the rest fail with
// ErrClosed.
func (s *Simulation) Shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if s.engine != nil {
			s.engine.Stop()
		}
		s.queue.close()

		ctx, cancel := context.WithTimeout(ctx, s.opts.StopTimeout)
		defer cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			n := s.queue.cancelAll(ErrClosed)
			s.log.Warn("shutdown timed out, queued work cancelled", "cancelled", n)
			err = fmt.Errorf("shutdown: %w", ctx.Err())
		}

		s.mu.Lock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
		s.subs = nil
		s.mu.Unlock()
	})
	return err
}

// do queues fn and waits for it to be applied.
func (s *Simulation) do(ctx context.Context, name string, fn func() error) error {
	return s.wait(ctx, newCommand(name, fn))
}

func (s *Simulation) wait(ctx context.Context, c *command) error {
	if err := s.queue.push(c); err != nil {
		return err
	}
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		if c.cancel(ctx.Err()) {
			return ctx.Err()
		}
		// Already running; it finishes quickly.
		<-c.done
		return c.err
	}
}

// call is do for operations with a result.
func call[T any](ctx context.Context, s *Simulation, name string, fn func() (T, error)) (T, error) {
	var out T
	err := s.do(ctx, name, func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}

func (s *Simulation) run() {
	defer close(s.done)
	for {
		c, ok := s.queue.pop()
		if !ok {
			return
		}
		s.exec(c)
	}
}

func (s *Simulation) exec(c *command) {
	if !c.state.CompareAndSwap(cmdQueued, cmdRunning) {
		return
	}
	if c.tick {
		s.tick()
	} else {
		c.err = s.step(c.name, c.fn)
		if c.err != nil && !errors.Is(c.err, ErrFault) {
			s.record(slog.LevelWarn, "manual", fmt.Sprintf("%s failed: %v", c.name, c.err), nil)
		}
	}
	s.publish()
	s.flush()
	close(c.done)
}

// checkpoint is the state a failed step rolls back to.
type checkpoint struct {
	grid       *garden.Grid
	spray      defense.Spray
	ins        defense.Insulation
	forced     events.Kind
	hasForced  bool
	waterBatch int
	pending    int
}

func (s *Simulation) checkpoint() checkpoint {
	cp := checkpoint{
		grid:       s.grid.Clone(),
		spray:      s.spray,
		ins:        s.ins,
		waterBatch: s.waterBatch,
		pending:    len(s.pending),
	}
	cp.forced, cp.hasForced = s.events.Forced()
	return cp
}

func (s *Simulation) restore(cp checkpoint) {
	s.grid, s.spray, s.ins = cp.grid, cp.spray, cp.ins
	s.waterBatch = cp.waterBatch
	s.pending = s.pending[:cp.pending]
	if cp.hasForced {
		s.events.Force(cp.forced)
	} else {
		s.events.Unforce()
	}
}

// step runs fn with fault isolation: a panic restores the state from
// before the step, is journalled, and returned as ErrFault.
func (s *Simulation) step(name string, fn func() error) (err error) {
	cp := s.checkpoint()
	defer func() {
		if r := recover(); r != nil {
			s.restore(cp)
			err = fmt.Errorf("%s: %w: %v", name, ErrFault, r)
			s.record(slog.LevelError, "error", fmt.Sprintf("Step %s failed and was rolled back: %v", name, r), nil)
		}
	}()
	if s.beforeStep != nil {
		s.beforeStep(name)
	}
	err = fn()
	s.settle()
	return err
}

// settle journals every death the last step caused.
func (s *Simulation) settle() {
	for _, d := range s.grid.DrainDeaths() {
		s.record(slog.LevelWarn, "death",
			fmt.Sprintf("%s died at %s", d.Species, cellName(d.Pos)),
			map[string]any{"row": d.Pos.Row, "col": d.Pos.Col, "species": d.Species.String()})
	}
}

func (s *Simulation) publish() {
	s.version++
	s.snap.Store(s.snapshot())
}

// record journals an entry and logs it. Worker only.
func (s *Simulation) record(level slog.Level, category, desc string, meta map[string]any) {
	e := Event{
		Tick:        s.cycle,
		Time:        s.now(),
		Level:       levelName(level),
		Category:    category,
		Description: desc,
		Meta:        meta,
	}
	s.pending = append(s.pending, e)
	s.log.Log(context.Background(), level, desc, "cycle", s.cycle, "category", category)
}

// flush hands the command's journal entries to the ring, subscribers and
// the sink.
func (s *Simulation) flush() {
	if len(s.pending) == 0 {
		return
	}
	batch := s.pending
	s.pending = nil

	s.mu.Lock()
	s.ring = append(s.ring, batch...)
	if over := len(s.ring) - s.opts.RecentEvents; over > 0 {
		s.ring = append([]Event(nil), s.ring[over:]...)
	}
	for _, e := range batch {
		for _, ch := range s.subs {
			select {
			case ch <- e:
			default:
			}
		}
	}
	s.mu.Unlock()

	s.toSink("events", func(sink Sink) { sink.SaveEvents(batch) })
}

// toSink hands data to the sink. A panicking sink is logged and never
// reaches the worker.
func (s *Simulation) toSink(what string, fn func(Sink)) {
	if s.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sink failed", "data", what, "cycle", s.cycle, "panic", r)
		}
	}()
	fn(s.sink)
}

// every reports whether a step with period k runs on cycle n.
func every(n uint64, k int) bool {
	return k > 0 && n%uint64(k) == 0
}

func cellName(p garden.Pos) string {
	return fmt.Sprintf("Row %d, Column %d", p.Row+1, p.Col+1)
}

func (s *Simulation) automationStarted(interval time.Duration) {
	c := newCommand("automation-start", func() error {
		s.automated = true
		s.record(slog.LevelInfo, "automation",
			fmt.Sprintf("Garden automation running, updates every %s", interval), nil)
		s.applyEvent(s.events.Trigger(s.grid, &s.spray, &s.ins))
		return nil
	})
	if err := s.queue.push(c); err != nil {
		s.log.Warn("automation start ignored", "error", err)
	}
}

func (s *Simulation) automationStopped() {
	dropped := s.queue.dropTicks()
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.StopTimeout)
	defer cancel()
	err := s.do(ctx, "automation-stop", func() error {
		s.automated = false
		s.record(slog.LevelInfo, "automation", "Garden automation stopped", map[string]any{"dropped_ticks": dropped})
		return nil
	})
	if err != nil {
		s.log.Warn("in-flight work did not finish before stop timeout", "error", err, "dropped_ticks", dropped)
	}
}
