package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/imaging"
	"outfit-studio/internal/lookgen"
)

const DefaultBatchSize = 3

type Classifier interface {
	Classify(ctx context.Context, img imaging.SourceImage) catalog.Category
}

type Generator interface {
	Generate(ctx context.Context, img imaging.SourceImage, cat catalog.Category, style catalog.Style) (lookgen.Look, error)
}

type StyleSource interface {
	FilterByCategory(cat catalog.Category) []catalog.Style
}

type Options struct {
	Classifier Classifier
	Generator  Generator
	Styles     StyleSource
	BatchSize  int
	Logger     *slog.Logger
}

// Orchestrator owns one RunState. Listeners registered with Subscribe are
// called one at a time, in the order state changes happen; they must not
// call Run, Start or Reset synchronously.
type Orchestrator struct {
	classifier Classifier
	generator  Generator
	styles     StyleSource
	batchSize  int
	logger     *slog.Logger

	// notifyMu orders state changes together with their notifications.
	notifyMu sync.Mutex

	mu           sync.Mutex
	state        runState
	epoch        uint64
	cancel       context.CancelFunc
	listeners    map[int]func(Snapshot)
	nextListener int
}

type Result struct {
	Snapshot Snapshot
	Err      error
}

type run struct {
	id    string
	epoch uint64
	image imaging.SourceImage
}

func New(opts Options) *Orchestrator {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	styles := opts.Styles
	if styles == nil {
		styles = catalog.Default()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Orchestrator{
		classifier: opts.Classifier,
		generator:  opts.Generator,
		styles:     styles,
		batchSize:  batchSize,
		logger:     logger,
		state:      runState{status: StatusIdle},
		listeners:  make(map[int]func(Snapshot)),
	}
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.snapshot()
}

func (o *Orchestrator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// Run executes a full generation run and blocks until it settles.
func (o *Orchestrator) Run(ctx context.Context, img imaging.SourceImage) (Snapshot, error) {
	r, runCtx, err := o.begin(ctx, img)
	if err != nil {
		return o.Snapshot(), err
	}
	return o.execute(runCtx, r)
}

// Start validates preconditions synchronously and runs in the background.
// The channel receives exactly one Result.
func (o *Orchestrator) Start(ctx context.Context, img imaging.SourceImage) (<-chan Result, error) {
	r, runCtx, err := o.begin(ctx, img)
	if err != nil {
		return nil, err
	}

	done := make(chan Result, 1)
	go func() {
		snap, err := o.execute(runCtx, r)
		done <- Result{Snapshot: snap, Err: err}
	}()
	return done, nil
}

// SubscribeWithCurrent is Subscribe, except that fn first receives the
// current snapshot. No state change can slip in between the two, so fn never
// sees an older snapshot after a newer one.
func (o *Orchestrator) SubscribeWithCurrent(fn func(Snapshot)) (unsubscribe func()) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	unsubscribe = o.Subscribe(fn)
	fn(o.Snapshot())
	return unsubscribe
}

// Reset returns to Idle. A run in flight is cancelled and whatever it still
// settles is discarded.
func (o *Orchestrator) Reset() {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	o.epoch++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = runState{status: StatusIdle}
	snap, listeners := o.state.snapshot(), o.listenersLocked()
	o.mu.Unlock()

	notify(listeners, snap)
}

func (o *Orchestrator) begin(ctx context.Context, img imaging.SourceImage) (run, context.Context, error) {
	if img.Empty() {
		return run{}, nil, ErrNoSourceImage
	}

	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.state.status.Running() {
		o.mu.Unlock()
		return run{}, nil, ErrRunInProgress
	}

	o.epoch++
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	r := run{id: uuid.NewString(), epoch: o.epoch, image: img}
	o.state = runState{runID: r.id, status: StatusClassifying}
	snap, listeners := o.state.snapshot(), o.listenersLocked()
	o.mu.Unlock()

	o.logger.Info("run started", "run_id", r.id)
	notify(listeners, snap)
	return r, runCtx, nil
}

func (o *Orchestrator) execute(ctx context.Context, r run) (snap Snapshot, err error) {
	defer o.release(r)
	defer func() {
		if p := recover(); p != nil {
			snap, err = o.fail(r, fmt.Errorf("panic: %v", p))
		}
	}()

	cat := o.classify(ctx, r)
	targets := o.styles.FilterByCategory(cat)

	if _, ok := o.update(r, func(st *runState) {
		st.category = cat
		st.targets = targets
		st.status = StatusGenerating
	}); !ok {
		return o.Snapshot(), ErrRunReset
	}
	o.logger.Info("styles selected", "run_id", r.id, "category", cat, "targets", len(targets), "batch_size", o.batchSize)

	for start := 0; start < len(targets); start += o.batchSize {
		if err := ctx.Err(); err != nil {
			if !o.current(r) {
				return o.Snapshot(), ErrRunReset
			}
			return o.fail(r, err)
		}

		end := min(start+o.batchSize, len(targets))
		o.dispatchBatch(ctx, r, cat, targets, start, end)
		if !o.current(r) {
			return o.Snapshot(), ErrRunReset
		}
	}

	snap, ok := o.update(r, func(st *runState) {
		st.status = StatusDone
	})
	if !ok {
		return o.Snapshot(), ErrRunReset
	}
	o.logger.Info("run done", "run_id", r.id, "artifacts", len(snap.Artifacts), "total", snap.Total)
	return snap, nil
}

// dispatchBatch runs targets[start:end] concurrently and returns once every
// item has settled. Every item settles, including ones whose call panics.
func (o *Orchestrator) dispatchBatch(ctx context.Context, r run, cat catalog.Category, targets []catalog.Style, start, end int) {
	var g errgroup.Group
	for i := start; i < end; i++ {
		idx, style := i, targets[i]
		g.Go(func() error {
			look, genErr := o.generate(ctx, r, cat, style)
			o.settle(r, idx, style, look, genErr)
			return nil
		})
	}
	_ = g.Wait()
}

// classify falls back to the default category if the classifier panics.
func (o *Orchestrator) classify(ctx context.Context, r run) (cat catalog.Category) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Warn("classifier panicked, using default category", "run_id", r.id, "default", catalog.DefaultCategory, "panic", p)
			cat = catalog.DefaultCategory
		}
	}()
	return o.classifier.Classify(ctx, r.image)
}

// generate turns a panicking generator call into an item error.
func (o *Orchestrator) generate(ctx context.Context, r run, cat catalog.Category, style catalog.Style) (look lookgen.Look, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("style %s: panic: %v", style.ID, p)
		}
	}()
	return o.generator.Generate(ctx, r.image, cat, style)
}

func (o *Orchestrator) settle(r run, idx int, style catalog.Style, look lookgen.Look, genErr error) {
	if genErr != nil {
		o.logger.Warn("style generation failed", "run_id", r.id, "style_id", style.ID, "err", genErr)
	}

	_, ok := o.update(r, func(st *runState) {
		if genErr == nil {
			st.addArtifact(Artifact{
				ID:         newArtifactID(style),
				StyleID:    style.ID,
				StyleLabel: style.Label,
				ImageData:  look.ImageData,
				CreatedAt:  look.CreatedAt,
				position:   idx,
			})
		}
		st.completed++
	})
	if !ok {
		o.logger.Debug("settlement discarded", "run_id", r.id, "style_id", style.ID)
	}
}

func (o *Orchestrator) fail(r run, cause error) (Snapshot, error) {
	runErr := &RunError{Cause: cause}
	o.logger.Error("run failed", "run_id", r.id, "err", cause)

	snap, ok := o.update(r, func(st *runState) {
		st.status = StatusFailed
		st.err = UserMessage
	})
	if !ok {
		return o.Snapshot(), ErrRunReset
	}
	return snap, runErr
}

// update applies fn if r is still the live run and notifies listeners.
func (o *Orchestrator) update(r run, fn func(*runState)) (Snapshot, bool) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	snap, listeners, ok := func() (Snapshot, []func(Snapshot), bool) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.epoch != r.epoch {
			return Snapshot{}, nil, false
		}
		fn(&o.state)
		return o.state.snapshot(), o.listenersLocked(), true
	}()
	if !ok {
		return Snapshot{}, false
	}

	notify(listeners, snap)
	return snap, true
}

func (o *Orchestrator) current(r run) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch == r.epoch
}

func (o *Orchestrator) release(r run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch == r.epoch && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(o.listeners))
	for _, id := range slices.Sorted(maps.Keys(o.listeners)) {
		out = append(out, o.listeners[id])
	}
	return out
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}

func newArtifactID(style catalog.Style) string {
	return fmt.Sprintf("img-%s-%s", style.ID, uuid.NewString())
}
