package job

import (
	"context"
	"log"
	"strconv"

	"litmusrt/internal/kernel"
	"litmusrt/internal/launch"
	"litmusrt/internal/litmus"
)

// KernelFor resolves the kernel a task body talks to.
type KernelFor func(ctx context.Context) kernel.Kernel

// Periodic returns a task body that runs as many jobs as its argument
// says, each inside a non-preemptive section, and exits with the number of
// jobs it completed. It exits with 1 if the task cannot be initialized
// and stops early once ctx is cancelled or shutdown is requested.
func Periodic(kernelFor KernelFor, opts litmus.Options, work Work) launch.Body {
	return func(ctx context.Context, arg string) int {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			log.Printf("task %d: bad job count %q", launch.TaskID(ctx), arg)
			return 2
		}

		k := kernelFor(ctx)
		r, err := litmus.Init(k, opts)
		if err != nil {
			log.Printf("task %d: %v", launch.TaskID(ctx), err)
			return 1
		}

		active := func() bool { return r.Active() && ctx.Err() == nil }
		done, err := Loop(k, active, n, func(job uint32) {
			r.EnterNP()
			if work != nil {
				work(job)
			}
			if err := r.ExitNP(); err != nil {
				log.Printf("task %d: job %d: %v", launch.TaskID(ctx), job, err)
			}
		})
		if err != nil {
			log.Printf("task %d: after %d jobs: %v", launch.TaskID(ctx), done, err)
		}
		return done
	}
}
