package launch

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrKilled      = errors.New("task killed")
	ErrNotParked   = errors.New("task is not parked")
	ErrUnknownBody = errors.New("no body registered")
)

// workerState follows Created -> {Released | Killed}.
type workerState int

const (
	workerCreated workerState = iota
	workerReleased
	workerKilled
)

// Workers spawns tasks as goroutines held behind a start gate. It gives the
// same guarantee as a parked process: a worker runs nothing of its body
// before Release.
type Workers struct {
	mu   sync.Mutex
	next int
	live map[int]*worker
}

// NewWorkers numbers its workers from base+1 upwards.
func NewWorkers(base int) *Workers {
	return &Workers{next: base, live: make(map[int]*worker)}
}

type worker struct {
	id     int
	owner  *Workers
	gate   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  workerState
	status int
}

// Spawn starts a parked worker for t.
func (ws *Workers) Spawn(t Task) (Child, error) {
	if t.Body == nil {
		return nil, ErrUnknownBody
	}

	ws.mu.Lock()
	ws.next++
	w := &worker{
		id:    ws.next,
		owner: ws,
		gate:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	ws.live[w.id] = w
	ws.mu.Unlock()

	ctx, cancel := context.WithCancel(WithTaskID(context.Background(), w.id))
	w.cancel = cancel
	go w.run(ctx, t)
	return w, nil
}

// Alive reports whether the worker id exists, parked or running.
func (ws *Workers) Alive(id int) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_, ok := ws.live[id]
	return ok
}

func (ws *Workers) forget(id int) {
	ws.mu.Lock()
	delete(ws.live, id)
	ws.mu.Unlock()
}

func (w *worker) run(ctx context.Context, t Task) {
	defer close(w.done)
	defer w.owner.forget(w.id)
	defer w.cancel()

	<-w.gate
	w.mu.Lock()
	killed := w.state == workerKilled
	w.mu.Unlock()
	if killed {
		return
	}

	status := t.Body(ctx, t.Arg)
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}

func (w *worker) ID() int { return w.id }

func (w *worker) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != workerCreated {
		return ErrNotParked
	}
	w.state = workerReleased
	close(w.gate)
	return nil
}

// Kill discards a parked worker. A released goroutine cannot be stopped
// from outside: its context is cancelled and Kill waits until the body
// has returned.
func (w *worker) Kill() error {
	w.mu.Lock()
	switch w.state {
	case workerCreated:
		w.state = workerKilled
		close(w.gate)
	case workerReleased:
		w.cancel()
	}
	w.mu.Unlock()
	<-w.done
	return nil
}

func (w *worker) Wait() (int, error) {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == workerKilled {
		return -1, ErrKilled
	}
	return w.status, nil
}
