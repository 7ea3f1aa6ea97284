package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/events"
	"github.com/prawnloader/prawnloader/loader/platform"
	"github.com/prawnloader/prawnloader/loader/worker"
)

var (
	ErrQueueFull      = errors.New("download queue is full")
	ErrNotDownloading = errors.New("request is not downloading")
	ErrNoProvider     = errors.New("no client for provider")
	ErrClosed         = errors.New("engine closed")

	errStopped = errors.New("download stopped")
)

const msgRemovedFromQueue = "removed from queue"

// Encoder converts, joins and cuts audio files.
type Encoder interface {
	Transcode(ctx context.Context, src, dst, format string) error
	Concat(ctx context.Context, srcs []string, dst, format string) error
	Segment(ctx context.Context, src, dst, format string, start, end time.Duration) error
}

// Tagger writes metadata into a finished file.
type Tagger interface {
	Tag(ctx context.Context, path string, song platform.Song) error
}

// Recorder stores the outcome of finished requests.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Outcome summarizes a request once it reached a terminal event.
type Outcome struct {
	RequestID    uuid.UUID
	Provider     platform.Provider
	Kind         platform.Kind
	Title        string
	Artist       string
	Succeeded    bool
	Message      string
	TracksTotal  int
	TracksFailed int
	FinishedAt   time.Time
}

// RequestState is the lifecycle position of a registered request.
type RequestState int

const (
	StateWaiting RequestState = iota
	StateDownloading
)

func (s RequestState) String() string {
	if s == StateDownloading {
		return "downloading"
	}
	return "waiting"
}

// MarshalText implements encoding.TextMarshaler.
func (s RequestState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RequestStatus is a registry snapshot entry.
type RequestStatus struct {
	ID       uuid.UUID         `json:"id"`
	Provider platform.Provider `json:"provider"`
	Kind     platform.Kind     `json:"kind"`
	Title    string            `json:"title"`
	Artist   string            `json:"artist"`
	State    RequestState      `json:"state"`
	Tracks   int               `json:"tracks"`
	Failed   int               `json:"failed"`
}

// Config configures an Engine.
type Config struct {
	// Workers is the number of workers per provider.
	Workers     int
	QueueSize   int
	EventBuffer int
	Encoder     Encoder
	Tagger      Tagger
	Recorder    Recorder
	Logger      loader.Logger
}

type job struct {
	req    DownloadRequest
	opts   Options
	ctx    context.Context
	cancel context.CancelCauseFunc
}

type providerQueue struct {
	provider platform.Provider
	client   platform.Client
	pool     *worker.Pool[*job]
}

type entry struct {
	status RequestStatus
	seq    uint64
	cancel context.CancelCauseFunc
}

// Engine coordinates per-provider queues, the request registry and the
// event stream.
type Engine struct {
	queues   map[platform.Provider]*providerQueue
	bus      *events.Bus
	out      chan events.Event
	encoder  Encoder
	tagger   Tagger
	recorder Recorder
	logger   loader.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	registry map[uuid.UUID]*entry
	seq      uint64
	closed   bool

	dispatchDone chan struct{}
}

// New builds one queue with cfg.Workers workers for every client in manager.
func New(manager *platform.Manager, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		queues:       make(map[platform.Provider]*providerQueue),
		bus:          events.New(cfg.EventBuffer),
		out:          make(chan events.Event, cfg.EventBuffer),
		encoder:      cfg.Encoder,
		tagger:       cfg.Tagger,
		recorder:     cfg.Recorder,
		logger:       cfg.Logger,
		ctx:          ctx,
		cancel:       cancel,
		registry:     make(map[uuid.UUID]*entry),
		dispatchDone: make(chan struct{}),
	}

	for _, provider := range manager.Providers() {
		client, ok := manager.Get(provider)
		if !ok {
			continue
		}
		q := &providerQueue{provider: provider, client: client}
		q.pool = worker.New(cfg.Workers, cfg.QueueSize, func(workerID int) worker.Handler[*job] {
			var log loader.Logger
			if e.logger != nil {
				log = e.logger.With("provider", string(provider), "worker", workerID)
			}
			return func(j *job) {
				e.handle(q, log, j)
			}
		})
		e.queues[provider] = q
	}

	go e.dispatch()
	return e
}

// Submit registers req, emits Waiting and enqueues it. It never blocks.
func (e *Engine) Submit(req DownloadRequest, opts Options) error {
	q, ok := e.queues[req.Item.Provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoProvider, req.Item.Provider)
	}

	ctx, cancel := context.WithCancelCause(e.ctx)
	j := &job{req: req, opts: opts, ctx: ctx, cancel: cancel}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel(ErrClosed)
		return ErrClosed
	}
	e.seq++
	e.registry[req.ID] = &entry{
		seq:    e.seq,
		cancel: cancel,
		status: RequestStatus{
			ID:       req.ID,
			Provider: req.Item.Provider,
			Kind:     req.Item.Kind,
			Title:    req.Item.Title(),
			Artist:   req.Item.Artist(),
			State:    StateWaiting,
			Tracks:   req.Item.Tracks(),
		},
	}
	e.mu.Unlock()

	e.bus.Publish(events.Waiting(req.ID))

	if err := q.pool.TrySubmit(j); err != nil {
		cancel(err)
		if errors.Is(err, worker.ErrQueueFull) {
			e.bus.Publish(events.DownloadError(req.ID, ErrQueueFull.Error()))
			return ErrQueueFull
		}
		e.bus.Publish(events.DownloadError(req.ID, ErrClosed.Error()))
		return ErrClosed
	}
	return nil
}

// Stop cancels a request that a worker is processing.
func (e *Engine) Stop(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.registry[id]
	if !ok || ent.status.State != StateDownloading {
		return ErrNotDownloading
	}
	ent.cancel(errStopped)
	return nil
}

// Clear drops the requests of provider that no worker has started.
func (e *Engine) Clear(provider platform.Provider) int {
	q, ok := e.queues[provider]
	if !ok {
		return 0
	}
	dropped := q.pool.Drain()
	for _, j := range dropped {
		j.cancel(errors.New(msgRemovedFromQueue))
		e.bus.Publish(events.DownloadError(j.req.ID, msgRemovedFromQueue))
	}
	if len(dropped) > 0 && e.logger != nil {
		e.logger.Info("queue cleared", "provider", string(provider), "dropped", len(dropped))
	}
	return len(dropped)
}

// Requests returns the registered requests in submission order.
func (e *Engine) Requests() []RequestStatus {
	e.mu.Lock()
	entries := make([]*entry, 0, len(e.registry))
	for _, ent := range e.registry {
		entries = append(entries, ent)
	}
	e.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]RequestStatus, len(entries))
	for i, ent := range entries {
		out[i] = ent.status
	}
	return out
}

// Events returns the single ordered outbound stream. It must be drained.
func (e *Engine) Events() <-chan events.Event {
	return e.out
}

// Providers returns the providers the engine has queues for.
func (e *Engine) Providers() []platform.Provider {
	providers := make([]platform.Provider, 0, len(e.queues))
	for p := range e.queues {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// Shutdown stops intake and waits for queued requests. When ctx expires the
// remaining work is cancelled. The event stream is closed afterwards.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.dispatchDone
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var errs []error
	for _, q := range e.queues {
		if err := q.pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s queue: %w", q.provider, err))
		}
	}
	e.cancel()
	if len(errs) > 0 {
		// cancelled workers still publish their terminal events
		for _, q := range e.queues {
			_ = q.pool.Shutdown(context.Background())
		}
	}

	e.bus.Close()
	<-e.dispatchDone
	return errors.Join(errs...)
}

// dispatch is the only consumer of the bus. It applies registry transitions
// and forwards every event.
func (e *Engine) dispatch() {
	defer close(e.dispatchDone)
	defer close(e.out)

	for ev := range e.bus.Events() {
		id, err := uuid.Parse(ev.RequestID)
		if err == nil {
			e.apply(id, ev)
		}
		e.out <- ev
	}
}

// setState moves a registered request to state. Workers call it before
// publishing Start so Stop works while the event is still in flight.
func (e *Engine) setState(id uuid.UUID, state RequestState) {
	e.mu.Lock()
	if ent, ok := e.registry[id]; ok {
		ent.status.State = state
	}
	e.mu.Unlock()
}

func (e *Engine) apply(id uuid.UUID, ev events.Event) {
	e.mu.Lock()
	ent, ok := e.registry[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	switch ev.Kind() {
	case events.KindStart:
		ent.status.State = StateDownloading
	case events.KindAlbumTrackError:
		ent.status.Failed++
	}
	terminal := ev.Kind().Terminal()
	if terminal {
		delete(e.registry, id)
	}
	status := ent.status
	e.mu.Unlock()

	if terminal {
		e.record(status, ev)
	}
}

func (e *Engine) record(status RequestStatus, ev events.Event) {
	if e.recorder == nil {
		return
	}
	outcome := Outcome{
		RequestID:    status.ID,
		Provider:     status.Provider,
		Kind:         status.Kind,
		Title:        status.Title,
		Artist:       status.Artist,
		Succeeded:    ev.Kind() == events.KindFinish,
		Message:      ev.Message,
		TracksTotal:  status.Tracks,
		TracksFailed: status.Failed,
		FinishedAt:   time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.recorder.Record(ctx, outcome); err != nil && e.logger != nil {
		e.logger.Warn("failed to record download", "request", status.ID.String(), "error", err)
	}
}
