package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"litmusrt/internal/job"
	"litmusrt/internal/kernel"
	"litmusrt/internal/launch"
	"litmusrt/internal/litmus"
	"litmusrt/internal/metrics"
	"litmusrt/internal/rt"
	"litmusrt/internal/sched"
	"litmusrt/internal/shutdown"
)

const bodyName = "periodic"

// Task processes run against the real kernel and always pin their memory.
func init() {
	launch.Register(bodyName, job.Periodic(
		func(context.Context) kernel.Kernel { return kernel.Litmus{} },
		litmus.Options{LockMemory: true},
		job.SleepWork(time.Millisecond),
	))
}

func main() {
	launch.Main()

	configPath := flag.String("config", "config.yml", "task set description")
	mode := flag.String("kernel", "sim", "kernel to run against: sim or litmus")
	csvPath := flag.String("csv", "", "write simulator events to this CSV file")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address")
	flag.Parse()

	// Read the configuration
	cfg, err := sched.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	policy, err := cfg.PolicyValue()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if *metricsAddr != "" {
		go func() {
			h := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
			if err := http.ListenAndServe(*metricsAddr, h); err != nil {
				log.Printf("metrics endpoint: %v", err)
			}
		}()
	}
	shutdown.Install()

	var (
		k    kernel.Kernel
		sp   launch.Spawner
		body launch.Body
	)
	switch *mode {
	case "sim":
		sim := sched.New(cfg)
		if *csvPath != "" {
			if err := sim.EnableCSVLogging(*csvPath); err != nil {
				log.Fatalf("Failed to open CSV log: %v", err)
			}
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			sim.Run(ctx)
			close(done)
		}()
		defer func() {
			cancel()
			<-done
		}()

		k, sp = sim, launch.NewWorkers(1000)
		body = job.Periodic(
			func(ctx context.Context) kernel.Kernel { return sim.Task(launch.TaskID(ctx)) },
			litmus.Options{LockMemory: cfg.LockMemory},
			job.SleepWork(time.Millisecond),
		)
	case "litmus":
		k = kernel.Litmus{}
		sp = &launch.Processes{Stdout: os.Stdout, Stderr: os.Stderr}
	default:
		log.Fatalf("Unknown kernel %q", *mode)
	}

	if err := k.SetPolicy(policy); err != nil {
		log.Fatalf("Failed to select scheduler %s: %v", policy, err)
	}
	fmt.Printf("Scheduler: %s\n", policy)

	l := launch.New(k, sp)
	var wg sync.WaitGroup
	for _, tc := range cfg.Tasks {
		p, err := tc.Params()
		if err != nil {
			log.Printf("skipped: %v", err)
			continue
		}
		h, err := l.CreateTask(launch.Task{Name: bodyName, Body: body, Arg: strconv.Itoa(tc.Jobs)}, p)
		if err != nil {
			var le *rt.LaunchError
			if errors.As(err, &le) && le.Created() {
				log.Printf("%s: created but could not be made real-time: %v", tc.Name, err)
			} else {
				log.Printf("%s: could not create task: %v", tc.Name, err)
			}
			continue
		}
		log.Printf("%s: launched as task %d (launch %s), %s", tc.Name, h.ID, h.LaunchID, p)

		wg.Add(1)
		go func(name string, h *launch.Handle) {
			defer wg.Done()
			status, err := h.Wait()
			if err != nil {
				log.Printf("%s: %v", name, err)
				return
			}
			log.Printf("%s: task %d exited with status %d after %v", name, h.ID, status, time.Since(h.Started))
		}(tc.Name, h)
	}
	wg.Wait()
}
