package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"timekeep/internal/storage"
	"timekeep/pkg/logx"
	"timekeep/pkg/timeslot"
)

type Config struct {
	Enabled        bool
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
	HistorySize    int
}

// JobSpec is one registered job, already validated by config.
type JobSpec struct {
	Name     string
	Schedule string
	Command  []string
	Timeout  time.Duration
}

type HistoryItem struct {
	Name     string
	Kind     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

type task struct {
	name    string
	kind    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

// entry pairs a job definition with the one timer slot that owns its next
// fire. Cron entries hold a one-shot handle re-armed after every fire;
// interval entries hold a repeating handle.
type entry struct {
	def  JobSpec
	spec ParsedSpec
	slot timeslot.Slot
	gen  uint64 // registration generation; stale fires from a replaced entry re-arm nothing
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	store  storage.Store
	timers *timeslot.Manager
	now    func() time.Time
	run    Runner

	parser  cron.Parser
	entries map[string]*entry
	gen     uint64

	queue  chan task
	stopCh chan struct{}
	wg     sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}

// New builds the service against the wall clock. The store may be nil when
// run history is disabled.
func New(cfg Config, log logx.Logger, store storage.Store) *Service {
	return &Service{
		cfg:     cfg,
		log:     log,
		store:   store,
		timers:  timeslot.New(nil),
		now:     time.Now,
		run:     ExecRunner{},
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries: map[string]*entry{},
	}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	queueSize := s.cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	s.queue = make(chan task, queueSize)

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	for _, e := range s.entries {
		s.armLocked(e)
	}
	s.log.Info("jobs started",
		logx.Int("workers", workers),
		logx.Int("jobs", len(s.entries)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.gen++ // any in-flight fire callback becomes stale

	slots := make([]*timeslot.Slot, 0, len(s.entries))
	for _, e := range s.entries {
		slots = append(slots, &e.slot)
	}
	err := s.timers.CancelAll(slots...)
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("timer cancellation faults on stop", logx.Err(err))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("jobs stop timed out waiting for workers")
	}
	s.log.Info("jobs stopped")
}

// Apply replaces the job set. Every previous slot is cancelled and the new
// definitions are armed from scratch. Invalid schedules skip that job only.
func (s *Service) Apply(cfg Config, defs []JobSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg

	old := make([]*timeslot.Slot, 0, len(s.entries))
	for _, e := range s.entries {
		old = append(old, &e.slot)
	}
	if err := s.timers.CancelAll(old...); err != nil {
		s.log.Warn("timer cancellation faults on apply", logx.Err(err))
	}
	s.gen++
	s.entries = make(map[string]*entry, len(defs))

	for _, def := range defs {
		spec, err := ParseSchedule(s.parser, def.Schedule)
		if err != nil {
			s.log.Error("job skipped", logx.String("job", def.Name), logx.Err(err))
			continue
		}
		e := &entry{def: def, spec: spec, gen: s.gen}
		s.entries[def.Name] = e
		if s.stopCh != nil {
			s.armLocked(e)
		}
	}
}

// armLocked installs e's next fire into its slot. Caller holds s.mu.
func (s *Service) armLocked(e *entry) {
	switch e.spec.Kind {
	case SpecInterval:
		_, err := s.timers.ArmRepeating(func() { s.enqueue(s.taskFor(e)) }, e.spec.Every, &e.slot)
		if err != nil {
			s.log.Error("arm failed", logx.String("job", e.def.Name), logx.Err(err))
		}
	case SpecCron:
		now := s.now()
		next := e.spec.Sched.Next(now)
		if next.IsZero() {
			s.log.Warn("schedule has no next occurrence", logx.String("job", e.def.Name))
			return
		}
		_, err := s.timers.ArmOnce(func() { s.fireCron(e) }, next.Sub(now), &e.slot)
		if err != nil {
			s.log.Error("arm failed", logx.String("job", e.def.Name), logx.Err(err))
		}
	}
}

// fireCron runs when a cron entry's one-shot fires. The slot was cleared
// before this callback, so re-arming installs a fresh handle instead of
// cancelling the one that just ran.
func (s *Service) fireCron(e *entry) {
	s.enqueue(s.taskFor(e))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil || e.gen != s.gen {
		return
	}
	s.armLocked(e)
}

// taskFor snapshots the entry into a queued run. Fire callbacks run on clock
// goroutines, so the config read takes the lock. The runner is bound at
// enqueue time so an Apply between fire and execution uses the live runner.
func (s *Service) taskFor(e *entry) task {
	s.mu.Lock()
	defTimeout := s.cfg.DefaultTimeout
	s.mu.Unlock()
	timeout := e.def.Timeout
	if timeout <= 0 {
		timeout = defTimeout
	}
	return task{
		name:    e.def.Name,
		kind:    e.spec.Kind.String(),
		timeout: timeout,
	}
}

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	queue := s.queue
	e := s.entries[t.name]
	run := s.run
	s.mu.Unlock()
	if queue == nil || e == nil {
		return
	}
	def := e.def
	t.run = func(ctx context.Context) error { return run.Run(ctx, def) }
	select {
	case queue <- t:
	default:
		s.log.Warn("job queue full, dropping run", logx.String("job", t.name))
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	s.mu.Lock()
	stopCh := s.stopCh
	queue := s.queue
	s.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	start := time.Now()
	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	err := t.run(runCtx)

	item := HistoryItem{
		Name:     t.name,
		Kind:     t.kind,
		Started:  start,
		Duration: time.Since(start),
	}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("job failed",
			logx.String("job", t.name),
			logx.Duration("took", item.Duration),
			logx.Err(err))
	} else {
		s.log.Info("job ok",
			logx.String("job", t.name),
			logx.Duration("took", item.Duration))
	}

	s.mu.Lock()
	keep := s.cfg.HistorySize
	s.mu.Unlock()
	s.hmu.Lock()
	s.history = append(s.history, item)
	if keep > 0 && len(s.history) > keep {
		s.history = s.history[len(s.history)-keep:]
	}
	s.hmu.Unlock()

	if s.store != nil {
		rec := storage.RunRecord{
			At:     start,
			Job:    t.name,
			Kind:   t.kind,
			OK:     err == nil,
			TookMS: item.Duration.Milliseconds(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if aerr := s.store.AppendRun(sctx, rec); aerr != nil {
			s.log.Warn("run history append failed", logx.String("job", t.name), logx.Err(aerr))
		}
		cancel()
	}
}
