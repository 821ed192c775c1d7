// Package scheduler runs recurring maintenance jobs on interval
// boundaries aligned to the Unix epoch.
package scheduler

import (
	"container/heap"
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Job is a named task run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

type entry struct {
	at  time.Time
	job Job
}

type entryHeap []entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler orders jobs by next fire time in a min-heap and sleeps until
// the earliest one is due.
type Scheduler struct {
	entries entryHeap
}

// New creates a scheduler over the given jobs. Jobs with a non-positive
// interval are ignored.
func New(jobs ...Job) *Scheduler {
	s := &Scheduler{}
	now := time.Now()
	for _, job := range jobs {
		if job.Interval <= 0 {
			continue
		}
		s.entries = append(s.entries, entry{at: nextFire(now, job.Interval), job: job})
	}
	heap.Init(&s.entries)
	return s
}

// nextFire is the next multiple of interval since the Unix epoch that
// lies strictly after now.
func nextFire(now time.Time, interval time.Duration) time.Time {
	n := now.UnixNano() / int64(interval)
	return time.Unix(0, (n+1)*int64(interval))
}

// Run fires jobs until the context is cancelled. Each wake-up runs
// exactly one job, then re-arms it for its next interval boundary.
func (s *Scheduler) Run(ctx context.Context) {
	if s.entries.Len() == 0 {
		<-ctx.Done()
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		next := s.entries[0]
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(time.Until(next.at))

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		item := heap.Pop(&s.entries).(entry)

		log.WithField("job", item.job.Name).Debug("Running scheduled job")
		item.job.Run(ctx)

		item.at = nextFire(time.Now(), item.job.Interval)
		heap.Push(&s.entries, item)
	}
}
