package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Func is the body of a scheduled task. A returned error is logged and the
// task keeps its schedule.
type Func func(ctx context.Context) error

// Task is a handle to a scheduled unit of work.
type Task struct {
	ID   uuid.UUID
	Name string

	cancel context.CancelFunc
	done   chan struct{}
	s      *Scheduler
}

// Cancel stops the task. A run already in progress sees its context cancelled.
// Safe to call on a nil task.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancel()
	t.s.forget(t.ID)
}

// Done is closed once the task goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Scheduler runs named timer-driven tasks against a clockwork clock so tests
// can advance virtual time.
type Scheduler struct {
	clock clockwork.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:  clock,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[uuid.UUID]*Task),
	}
}

// Clock returns the clock driving the scheduler.
func (s *Scheduler) Clock() clockwork.Clock {
	return s.clock
}

// Every runs fn each interval. The next delay starts after fn returns so runs
// never overlap.
func (s *Scheduler) Every(name string, interval time.Duration, fn Func) *Task {
	return s.start(name, interval, true, fn)
}

// After runs fn once after delay.
func (s *Scheduler) After(name string, delay time.Duration, fn Func) *Task {
	return s.start(name, delay, false, fn)
}

// Stop cancels every task and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.tasks = make(map[uuid.UUID]*Task)
	s.mu.Unlock()
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) start(name string, delay time.Duration, repeat bool, fn Func) *Task {
	ctx, cancel := context.WithCancel(s.ctx)
	task := &Task{
		ID:     uuid.New(),
		Name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
		s:      s,
	}

	if s.ctx.Err() != nil {
		cancel()
		close(task.done)
		return task
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	// The timer is created before the goroutine starts so callers holding a
	// fake clock can Advance right after scheduling.
	timer := s.clock.NewTimer(delay)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(task.done)
		defer s.forget(task.ID)

		for {
			select {
			case <-ctx.Done():
				stopAndDrainTimer(timer)
				return
			case <-timer.Chan():
			}
			if ctx.Err() != nil {
				return
			}

			s.run(ctx, task, fn)

			if !repeat || ctx.Err() != nil {
				return
			}
			timer.Reset(delay)
		}
	}()

	log.Debug().
		Str("task", name).
		Str("task_id", task.ID.String()).
		Dur("delay", delay).
		Bool("repeat", repeat).
		Msg("scheduled task")

	return task
}

func (s *Scheduler) run(ctx context.Context, task *Task, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("task", task.Name).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("scheduled task panicked")
		}
	}()

	if err := fn(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("task", task.Name).Msg("scheduled task failed")
	}
}

func (s *Scheduler) forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
