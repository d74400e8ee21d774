package launch

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Environment handed to a task process.
const (
	envTask = "LITMUSRT_TASK"
	envArg  = "LITMUSRT_TASK_ARG"
)

var (
	bodiesMu sync.RWMutex
	bodies   = map[string]Body{}
)

// Register makes body available to task processes under name. Register
// from init or at the top of main, before Main runs.
func Register(name string, body Body) {
	bodiesMu.Lock()
	defer bodiesMu.Unlock()
	if _, dup := bodies[name]; dup {
		panic(fmt.Sprintf("launch: body %q registered twice", name))
	}
	bodies[name] = body
}

func lookup(name string) (Body, bool) {
	bodiesMu.RLock()
	defer bodiesMu.RUnlock()
	b, ok := bodies[name]
	return b, ok
}

// Main must be the first thing main calls. In a task process it runs the
// requested body and exits with its status; in every other process it
// returns immediately.
func Main() {
	name, ok := os.LookupEnv(envTask)
	if !ok {
		return
	}
	arg := os.Getenv(envArg)
	os.Unsetenv(envTask)
	os.Unsetenv(envArg)

	body, ok := lookup(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "launch: no body registered as %q\n", name)
		os.Exit(127)
	}
	os.Exit(body(WithTaskID(context.Background(), os.Getpid()), arg))
}

type taskIDKey struct{}

// WithTaskID records the id of the running task in ctx.
func WithTaskID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// TaskID returns the id of the task a body runs as, 0 outside of a task.
func TaskID(ctx context.Context) int {
	id, _ := ctx.Value(taskIDKey{}).(int)
	return id
}
