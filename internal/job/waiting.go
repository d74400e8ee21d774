package job

import (
	"time"

	"litmusrt/internal/kernel"
)

// Work is the code of one job.
type Work func(job uint32)

// SleepWork returns a job that just sleeps for the given duration, standing
// in for execution time.
func SleepWork(d time.Duration) Work {
	return func(uint32) {
		time.Sleep(d)
	}
}

// Loop runs up to n jobs. Before each job it waits for the next release;
// it stops early once active reports false. It returns the number of
// releases it waited for.
func Loop(k kernel.Jobs, active func() bool, n int, work Work) (int, error) {
	done := 0
	for done < n && active() {
		if err := k.SleepNextPeriod(); err != nil {
			return done, err
		}
		done++
		job, err := k.JobNo()
		if err != nil {
			return done, err
		}
		if work != nil {
			work(job)
		}
	}
	return done, nil
}
