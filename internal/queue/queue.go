package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusRetry       Status = "retry"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Task is one album in the queue. Mutated only by the owning queue.
type Task struct {
	ID         int64
	RetryCount int
	Status     Status
	Filename   string
}

// DownloadInfo is a resolved direct download target.
type DownloadInfo struct {
	URL      string
	Filename string
}

// Resolver turns an album ID into a direct download URL. Implementations
// must not panic; failures come back as errors and count as one attempt.
type Resolver interface {
	Resolve(ctx context.Context, id int64) (*DownloadInfo, error)
}

// Trigger performs the actual download side effect.
type Trigger interface {
	Download(ctx context.Context, url, filename string) error
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type Progress struct {
	Current  int
	Total    int
	Filename string
}

type TaskError struct {
	ID         int64
	Message    string
	RetryCount int
}

type Summary struct {
	Total      int
	Successful int
	Failed     int
}

type Options struct {
	DelayBetweenTasks time.Duration
	MaxRetries        int
}

const (
	DefaultDelayBetweenTasks = 3 * time.Second
	DefaultMaxRetries        = 2
)

// Queue processes download tasks strictly one at a time, in enqueue order.
// The serial cadence plus the fixed inter-task delay is what keeps the
// mirrors from rate-limiting the batch.
type Queue struct {
	resolver Resolver
	trigger  Trigger
	log      Logger

	delay      time.Duration
	maxRetries int

	mu           sync.Mutex
	tasks        []*Task
	currentIndex int
	running      bool
	paused       bool
	cancelled    bool
	inFlight     bool
	stats        Summary

	onProgress  []func(Progress)
	onError     []func(TaskError)
	onCompleted []func(Summary)
}

func New(resolver Resolver, trigger Trigger, log Logger, opts Options) *Queue {
	if opts.DelayBetweenTasks <= 0 {
		opts.DelayBetweenTasks = DefaultDelayBetweenTasks
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	return &Queue{
		resolver:   resolver,
		trigger:    trigger,
		log:        log,
		delay:      opts.DelayBetweenTasks,
		maxRetries: opts.MaxRetries,
	}
}

func (q *Queue) OnProgress(fn func(Progress)) {
	q.mu.Lock()
	q.onProgress = append(q.onProgress, fn)
	q.mu.Unlock()
}

func (q *Queue) OnError(fn func(TaskError)) {
	q.mu.Lock()
	q.onError = append(q.onError, fn)
	q.mu.Unlock()
}

func (q *Queue) OnCompleted(fn func(Summary)) {
	q.mu.Lock()
	q.onCompleted = append(q.onCompleted, fn)
	q.mu.Unlock()
}

// AddTask appends a pending task. The queue enforces no size cap; callers
// cap their selection before enqueueing.
func (q *Queue) AddTask(id int64) {
	q.mu.Lock()
	q.tasks = append(q.tasks, &Task{ID: id, Status: StatusPending})
	q.stats.Total++
	q.mu.Unlock()
}

// Start processes the queue until drained, cancelled, or paused. It blocks
// the calling goroutine; control methods are safe from other goroutines.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		q.log.Warnf("queue already running\n")
		return
	}
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		q.log.Warnf("queue is empty, nothing to do\n")
		return
	}

	q.running = true
	q.cancelled = false
	q.paused = false
	q.currentIndex = 0
	total := len(q.tasks)
	q.mu.Unlock()

	q.log.Infof("processing download queue, %d task(s)\n", total)
	q.process(ctx)
}

// Pause stops processing between tasks. The in-flight task finishes.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		q.log.Warnf("queue not running, cannot pause\n")
		return
	}

	q.paused = true
	q.log.Infof("queue paused\n")
}

// Resume continues processing from the current cursor.
func (q *Queue) Resume(ctx context.Context) {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		q.log.Warnf("queue not running, cannot resume\n")
		return
	}
	if !q.paused {
		q.mu.Unlock()
		q.log.Warnf("queue not paused\n")
		return
	}

	q.paused = false
	q.mu.Unlock()

	q.log.Infof("queue resumed\n")
	q.process(ctx)
}

// Cancel stops processing after the current task, best effort.
func (q *Queue) Cancel() {
	q.mu.Lock()
	q.cancelled = true
	q.paused = false
	q.running = false
	q.mu.Unlock()

	q.log.Infof("queue cancelled\n")
}

// Clear truncates every task after the current position and reports how
// many were removed. An empty, idle queue resets its stats entirely.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	preserve := q.currentIndex
	if q.inFlight {
		preserve = q.currentIndex + 1
	}
	if preserve > len(q.tasks) {
		preserve = len(q.tasks)
	}

	removed := len(q.tasks) - preserve
	if removed > 0 {
		q.tasks = q.tasks[:preserve]
	}

	q.stats.Total = len(q.tasks)
	q.cancelled = true
	q.paused = false

	if !q.inFlight && len(q.tasks) == 0 {
		q.running = false
		q.currentIndex = 0
		q.stats.Successful = 0
		q.stats.Failed = 0
	}

	return removed
}

func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

func (q *Queue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

func (q *Queue) Stats() Summary {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *Queue) process(ctx context.Context) {
	for {
		q.mu.Lock()
		if q.currentIndex >= len(q.tasks) || q.cancelled {
			q.mu.Unlock()
			break
		}
		if q.paused {
			q.mu.Unlock()
			q.log.Infof("queue processing paused\n")
			return
		}

		task := q.tasks[q.currentIndex]
		q.inFlight = true
		q.mu.Unlock()

		ok := q.processTask(ctx, task)

		q.mu.Lock()
		q.inFlight = false
		if q.cancelled {
			q.mu.Unlock()
			q.log.Infof("queue cleared, stopping remaining tasks\n")
			break
		}

		if ok {
			task.Status = StatusCompleted
			q.stats.Successful++
		} else if task.RetryCount < q.maxRetries {
			task.RetryCount++
			task.Status = StatusRetry
			retries := task.RetryCount
			q.mu.Unlock()

			q.log.Infof("task %d failed, retrying (%d/%d)\n", task.ID, retries, q.maxRetries)
			q.emitError(TaskError{ID: task.ID, Message: "download failed, retrying", RetryCount: retries})

			// Same pacing as between distinct tasks; cursor stays put.
			if !q.wait(ctx) {
				break
			}
			continue
		} else {
			task.Status = StatusFailed
			q.stats.Failed++
			retries := task.RetryCount
			q.mu.Unlock()

			q.emitError(TaskError{ID: task.ID, Message: "download failed, retries exhausted", RetryCount: retries})
			q.mu.Lock()
		}

		filename := task.Filename
		if filename == "" {
			filename = fmt.Sprintf("album_%d.zip", task.ID)
		}
		current := q.currentIndex + 1
		total := len(q.tasks)
		q.currentIndex++
		more := q.currentIndex < len(q.tasks)
		q.mu.Unlock()

		q.emitProgress(Progress{Current: current, Total: total, Filename: filename})

		if more && !q.wait(ctx) {
			break
		}
	}

	q.mu.Lock()
	q.running = false
	stats := q.stats
	q.mu.Unlock()

	q.log.Infof("queue finished: total %d, successful %d, failed %d\n",
		stats.Total, stats.Successful, stats.Failed)
	q.emitCompleted(stats)
}

func (q *Queue) processTask(ctx context.Context, task *Task) bool {
	task.Status = StatusDownloading
	q.log.Debugf("processing task %d\n", task.ID)

	info, err := q.resolver.Resolve(ctx, task.ID)
	if err != nil || info == nil {
		q.log.Errorf("resolving download for %d failed: %v\n", task.ID, err)
		return false
	}

	task.Filename = info.Filename

	if err := q.trigger.Download(ctx, info.URL, info.Filename); err != nil {
		q.log.Errorf("download of %d failed: %v\n", task.ID, err)
		return false
	}

	q.log.Debugf("task %d done\n", task.ID)
	return true
}

// wait sleeps for the inter-task delay. Context cancellation counts as a
// queue cancel so the completed event still fires with honest stats.
func (q *Queue) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		q.mu.Lock()
		q.cancelled = true
		q.running = false
		q.mu.Unlock()
		return false
	case <-time.After(q.delay):
		return true
	}
}

func (q *Queue) emitProgress(p Progress) {
	q.mu.Lock()
	listeners := append([]func(Progress){}, q.onProgress...)
	q.mu.Unlock()

	for _, fn := range listeners {
		q.safeCall("progress", func() { fn(p) })
	}
}

func (q *Queue) emitError(e TaskError) {
	q.mu.Lock()
	listeners := append([]func(TaskError){}, q.onError...)
	q.mu.Unlock()

	for _, fn := range listeners {
		q.safeCall("error", func() { fn(e) })
	}
}

func (q *Queue) emitCompleted(s Summary) {
	q.mu.Lock()
	listeners := append([]func(Summary){}, q.onCompleted...)
	q.mu.Unlock()

	for _, fn := range listeners {
		q.safeCall("completed", func() { fn(s) })
	}
}

// safeCall keeps a misbehaving listener from killing the queue.
func (q *Queue) safeCall(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorf("%s listener panicked: %v\n", event, r)
		}
	}()
	fn()
}
