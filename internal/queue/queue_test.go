package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// scriptedResolver fails the IDs listed in fail, for every attempt.
type scriptedResolver struct {
	fail     map[int64]bool
	attempts []int64
}

func (r *scriptedResolver) Resolve(_ context.Context, id int64) (*DownloadInfo, error) {
	r.attempts = append(r.attempts, id)
	if r.fail[id] {
		return nil, errors.New("resolve failed")
	}

	return &DownloadInfo{
		URL:      fmt.Sprintf("https://dl.example/%d", id),
		Filename: fmt.Sprintf("title_%d.zip", id),
	}, nil
}

type countingTrigger struct {
	active  atomic.Int32
	overlap atomic.Bool
	calls   atomic.Int32
}

func (t *countingTrigger) Download(_ context.Context, _, _ string) error {
	if t.active.Add(1) > 1 {
		t.overlap.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	t.active.Add(-1)
	t.calls.Add(1)
	return nil
}

func newTestQueue(r Resolver, t Trigger, maxRetries int) *Queue {
	return New(r, t, nopLogger{}, Options{
		DelayBetweenTasks: time.Millisecond,
		MaxRetries:        maxRetries,
	})
}

func TestQueueDrainsInOrder(t *testing.T) {
	resolver := &scriptedResolver{}
	trigger := &countingTrigger{}
	q := newTestQueue(resolver, trigger, 2)

	for _, id := range []int64{11, 22, 33} {
		q.AddTask(id)
	}

	var progress []Progress
	var done []Summary
	q.OnProgress(func(p Progress) { progress = append(progress, p) })
	q.OnCompleted(func(s Summary) { done = append(done, s) })

	q.Start(context.Background())

	if trigger.overlap.Load() {
		t.Fatal("two downloads ran at the same time")
	}

	wantOrder := []int64{11, 22, 33}
	if len(resolver.attempts) != len(wantOrder) {
		t.Fatalf("attempts = %v, want %v", resolver.attempts, wantOrder)
	}
	for i, id := range wantOrder {
		if resolver.attempts[i] != id {
			t.Fatalf("attempt %d = %d, want %d", i, resolver.attempts[i], id)
		}
	}

	if len(progress) != 3 {
		t.Fatalf("got %d progress events, want 3", len(progress))
	}
	for i, p := range progress {
		if p.Current != i+1 || p.Total != 3 {
			t.Errorf("progress %d = %d/%d, want %d/3", i, p.Current, p.Total, i+1)
		}
	}
	if progress[0].Filename != "title_11.zip" {
		t.Errorf("filename = %q, want title_11.zip", progress[0].Filename)
	}

	if len(done) != 1 {
		t.Fatalf("completed fired %d times, want 1", len(done))
	}
	if s := done[0]; s.Total != 3 || s.Successful != 3 || s.Failed != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestQueueRetriesThenFails(t *testing.T) {
	resolver := &scriptedResolver{fail: map[int64]bool{7: true}}
	q := newTestQueue(resolver, &countingTrigger{}, 2)
	q.AddTask(7)

	var errs []TaskError
	q.OnError(func(e TaskError) { errs = append(errs, e) })

	q.Start(context.Background())

	// initial attempt plus two retries
	if len(resolver.attempts) != 3 {
		t.Fatalf("got %d attempts, want 3", len(resolver.attempts))
	}

	if len(errs) != 3 {
		t.Fatalf("got %d error events, want 3", len(errs))
	}
	for i, e := range errs[:2] {
		if e.RetryCount != i+1 {
			t.Errorf("retry event %d has RetryCount %d, want %d", i, e.RetryCount, i+1)
		}
	}
	if last := errs[2]; last.RetryCount != 2 {
		t.Errorf("final error RetryCount = %d, want 2", last.RetryCount)
	}

	if s := q.Stats(); s.Failed != 1 || s.Successful != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestQueueZeroRetriesFailsImmediately(t *testing.T) {
	resolver := &scriptedResolver{fail: map[int64]bool{1: true}}
	q := newTestQueue(resolver, &countingTrigger{}, 0)
	q.AddTask(1)
	q.AddTask(2)

	var errs []TaskError
	var progress []Progress
	q.OnError(func(e TaskError) { errs = append(errs, e) })
	q.OnProgress(func(p Progress) { progress = append(progress, p) })

	q.Start(context.Background())

	if len(errs) != 1 {
		t.Fatalf("got %d error events, want 1", len(errs))
	}
	if errs[0].RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", errs[0].RetryCount)
	}

	// the failed task still advances the cursor and counts in progress
	if len(progress) != 2 {
		t.Fatalf("got %d progress events, want 2", len(progress))
	}
	if progress[0].Filename != "album_1.zip" {
		t.Errorf("failed task filename = %q, want the album_1.zip fallback", progress[0].Filename)
	}

	if s := q.Stats(); s.Total != 2 || s.Successful != 1 || s.Failed != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestQueueCompletedFiresOnContextCancel(t *testing.T) {
	resolver := &scriptedResolver{}
	q := newTestQueue(resolver, &countingTrigger{}, 0)
	for id := int64(1); id <= 5; id++ {
		q.AddTask(id)
	}

	var done []Summary
	q.OnCompleted(func(s Summary) { done = append(done, s) })

	ctx, cancel := context.WithCancel(context.Background())
	q.OnProgress(func(p Progress) {
		if p.Current == 2 {
			cancel()
		}
	})

	q.Start(ctx)

	if len(done) != 1 {
		t.Fatalf("completed fired %d times, want 1", len(done))
	}
	if done[0].Successful != 2 {
		t.Errorf("successful = %d, want 2", done[0].Successful)
	}
	if q.IsRunning() {
		t.Error("queue still marked running after cancel")
	}
}

func TestClearKeepsProcessedPrefix(t *testing.T) {
	q := newTestQueue(&scriptedResolver{}, &countingTrigger{}, 0)
	for id := int64(1); id <= 5; id++ {
		q.AddTask(id)
	}

	q.mu.Lock()
	q.running = true
	q.currentIndex = 2
	q.inFlight = true
	q.mu.Unlock()

	if removed := q.Clear(); removed != 2 {
		t.Fatalf("removed = %d, want 2 (two done, one in flight, two pending)", removed)
	}
	if s := q.Stats(); s.Total != 3 {
		t.Errorf("total after clear = %d, want 3", s.Total)
	}
}

func TestClearOnIdleQueueResets(t *testing.T) {
	q := newTestQueue(&scriptedResolver{}, &countingTrigger{}, 0)
	q.AddTask(1)
	q.AddTask(2)

	if removed := q.Clear(); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if s := q.Stats(); s.Total != 0 || s.Successful != 0 || s.Failed != 0 {
		t.Errorf("stats not reset: %+v", s)
	}
}

func TestListenerPanicDoesNotStopQueue(t *testing.T) {
	resolver := &scriptedResolver{}
	q := newTestQueue(resolver, &countingTrigger{}, 0)
	q.AddTask(1)
	q.AddTask(2)

	q.OnProgress(func(Progress) { panic("listener bug") })

	var done []Summary
	q.OnCompleted(func(s Summary) { done = append(done, s) })

	q.Start(context.Background())

	if len(done) != 1 || done[0].Successful != 2 {
		t.Fatalf("queue did not finish cleanly: %v", done)
	}
}

func TestPauseStopsBetweenTasksAndResumeContinues(t *testing.T) {
	resolver := &scriptedResolver{}
	q := newTestQueue(resolver, &countingTrigger{}, 0)
	for id := int64(1); id <= 3; id++ {
		q.AddTask(id)
	}

	q.OnProgress(func(p Progress) {
		if p.Current == 1 {
			q.Pause()
		}
	})

	q.Start(context.Background())

	if !q.IsPaused() {
		t.Fatal("queue should be paused")
	}
	if got := len(resolver.attempts); got != 1 {
		t.Fatalf("attempts before resume = %d, want 1", got)
	}

	q.Resume(context.Background())

	if got := len(resolver.attempts); got != 3 {
		t.Fatalf("attempts after resume = %d, want 3", got)
	}
	if s := q.Stats(); s.Successful != 3 {
		t.Errorf("stats = %+v", s)
	}
}
