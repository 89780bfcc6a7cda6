package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

type recorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *recorder) add(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.actions))
	copy(out, r.actions)
	return out
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.WaitIdle(ctx))
}

func stop(t *testing.T, q *Queue) {
	t.Helper()
	q.Destroy()
	select {
	case <-q.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("drain loop did not exit")
	}
}

func TestQueue_UrgentRunsBeforeQueued(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.New()
	rec := &recorder{}
	release := make(chan struct{})
	var q *Queue
	q = New(st, func(_ context.Context, task types.Task) (bool, error) {
		rec.add(task.Action)
		if task.Action == "A" {
			<-release
		}
		return true, nil
	}, WithInterval(time.Millisecond))
	q.Start(context.Background())
	defer stop(t, q)

	q.Enqueue(types.Task{Sender: "amy", Action: "A"})
	require.Eventually(t, func() bool { return len(rec.list()) == 1 }, 2*time.Second, time.Millisecond)

	q.Enqueue(types.Task{Sender: "amy", Action: "B"})
	q.EnqueueUrgent(types.Task{Sender: "system", Action: "C"})
	close(release)

	waitIdle(t, q)
	assert.Equal(t, []string{"A", "C", "B"}, rec.list())
}

func TestQueue_SingleInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.New()
	var running, peak int32
	q := New(st, func(_ context.Context, _ types.Task) (bool, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return true, nil
	}, WithInterval(0))
	q.Start(context.Background())
	defer stop(t, q)

	for i := 0; i < 10; i++ {
		q.Enqueue(types.Task{Sender: "amy", Action: "feed"})
	}
	waitIdle(t, q)
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestQueue_DropsAfterRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.New()
	rec := &recorder{}
	q := New(st, func(_ context.Context, task types.Task) (bool, error) {
		rec.add(task.Action)
		if task.Action == "broken_drop" {
			return false, errors.New("boom")
		}
		return true, nil
	}, WithInterval(time.Millisecond))
	q.Start(context.Background())
	defer stop(t, q)

	q.Enqueue(types.Task{Sender: "amy", Action: "broken_drop"})
	q.Enqueue(types.Task{Sender: "amy", Action: "after_drop"})
	waitIdle(t, q)

	assert.Equal(t, []string{"broken_drop", "broken_drop", "broken_drop", "broken_drop", "after_drop"}, rec.list())
	assert.Equal(t, 1.0, testutil.ToFloat64(TasksProcessed.WithLabelValues("broken_drop", StatusDropped)))
	assert.Equal(t, 4.0, testutil.ToFloat64(TasksProcessed.WithLabelValues("broken_drop", StatusFailure)))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_FalseResultIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.New()
	var calls int32
	q := New(st, func(_ context.Context, _ types.Task) (bool, error) {
		return atomic.AddInt32(&calls, 1) >= 2, nil
	}, WithInterval(time.Millisecond))
	q.Start(context.Background())
	defer stop(t, q)

	q.Enqueue(types.Task{Sender: "amy", Action: "flaky"})
	waitIdle(t, q)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueue_PanicIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.New()
	var calls int32
	q := New(st, func(_ context.Context, _ types.Task) (bool, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("handler exploded")
		}
		return true, nil
	}, WithInterval(time.Millisecond))
	q.Start(context.Background())
	defer stop(t, q)

	q.Enqueue(types.Task{Sender: "amy", Action: "panicky"})
	waitIdle(t, q)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueue_AssignsIDs(t *testing.T) {
	st := store.New()
	q := New(st, nil)

	a := q.Enqueue(types.Task{Sender: "amy", Action: "feed"})
	b := q.Enqueue(types.Task{Sender: "amy", Action: "feed"})
	c := q.Enqueue(types.Task{ID: "fixed", Sender: "amy", Action: "feed"})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID, "identical tasks get distinct identities")
	assert.Less(t, a.ID, b.ID)
	assert.Equal(t, "fixed", c.ID)
}

func TestQueue_StoreBacked(t *testing.T) {
	st := store.New()
	q := New(st, nil, WithPath("scene.tasks"))

	q.Enqueue(types.Task{Sender: "amy", Action: "feed"})
	q.EnqueueUrgent(types.Task{Sender: "system", Action: "die"})

	var stored []types.Task
	require.NoError(t, st.Decode("scene.tasks", &stored))
	require.Len(t, stored, 2)
	assert.Equal(t, "die", stored[0].Action)
	assert.Equal(t, "feed", stored[1].Action)
}

func TestQueue_DecodesGenericValues(t *testing.T) {
	st := store.New()
	st.Set(DefaultPath, []any{
		map[string]any{"id": "01", "sender": "amy", "action": "feed", "params": map[string]any{"n": 1.0}},
	})
	q := New(st, nil)

	tasks := q.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "feed", tasks[0].Action)
	assert.Equal(t, 1.0, tasks[0].Params["n"])
}

func TestQueue_DrainsRestoredTasksOnStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.New()
	st.Set(DefaultPath, []types.Task{{ID: "x", Sender: "amy", Action: "restored"}})

	rec := &recorder{}
	q := New(st, func(_ context.Context, task types.Task) (bool, error) {
		rec.add(task.Action)
		return true, nil
	}, WithInterval(time.Millisecond))
	q.Start(context.Background())
	defer stop(t, q)

	waitIdle(t, q)
	assert.Equal(t, []string{"restored"}, rec.list())
}

func TestQueue_RemoveAndClear(t *testing.T) {
	st := store.New()
	q := New(st, nil)

	a := q.Enqueue(types.Task{Sender: "amy", Action: "feed"})
	q.Enqueue(types.Task{Sender: "amy", Action: "sleep"})

	assert.True(t, q.Remove(a.ID))
	assert.False(t, q.Remove(a.ID))
	require.Len(t, q.Tasks(), 1)
	assert.Equal(t, "sleep", q.Tasks()[0].Action)

	q.Clear()
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DestroyDoesNotCancelRunningHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.New()
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr atomic.Value
	q := New(st, func(ctx context.Context, _ types.Task) (bool, error) {
		close(started)
		<-release
		handlerErr.Store(ctx.Err() == nil)
		return true, nil
	}, WithInterval(0))
	q.Start(context.Background())

	q.Enqueue(types.Task{Sender: "amy", Action: "nap"})
	<-started
	q.Destroy()
	close(release)

	select {
	case <-q.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("drain loop did not exit")
	}
	assert.Equal(t, true, handlerErr.Load())
	assert.Equal(t, 0, st.WatcherCount(DefaultPath))
}

func TestQueue_DestroyBeforeStart(t *testing.T) {
	q := New(store.New(), nil)
	q.Destroy()
	select {
	case <-q.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)
	Depth.Set(2)
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
