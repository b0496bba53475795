package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCounterZeroValueIsComplete(t *testing.T) {
	t.Parallel()
	var c Counter
	require.True(t, c.IsComplete())
	require.Equal(t, ResultPending, c.Result())
	select {
	case <-c.Done():
	default:
		t.Fatal("zero counter should have a closed Done channel")
	}
}

func TestCounterDecrementReleasesWaiters(t *testing.T) {
	t.Parallel()
	c := NewCounter(3)

	const waiters = 4
	var wg sync.WaitGroup
	released := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Wait()
			released <- struct{}{}
		}()
	}

	c.Decrement()
	c.Decrement()
	require.False(t, c.IsComplete())
	require.Len(t, released, 0)

	c.Decrement()
	wg.Wait()
	require.Len(t, released, waiters)
	require.EqualValues(t, 0, c.Count())
}

func TestCounterDecrementBelowZeroIsNoop(t *testing.T) {
	t.Parallel()
	c := NewCounter(1)
	c.Decrement()
	c.Decrement()
	c.Decrement()
	require.EqualValues(t, 0, c.Count())

	c.Increment()
	require.False(t, c.IsComplete())
	c.Decrement()
	require.True(t, c.IsComplete())
}

func TestCounterIncrementReopens(t *testing.T) {
	t.Parallel()
	c := NewCounter(0)
	old := c.Done()
	c.Increment()

	select {
	case <-old:
	default:
		t.Fatal("old Done channel must stay closed")
	}
	select {
	case <-c.Done():
		t.Fatal("new Done channel must be open while count > 0")
	default:
	}
	c.Decrement()
	<-c.Done()
}

func TestCounterResultIsMonotonic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		steps []Result
		want  Result
	}{
		{name: "pending to success", steps: []Result{ResultSuccess}, want: ResultSuccess},
		{name: "success downgraded by failure", steps: []Result{ResultSuccess, ResultFailed}, want: ResultFailed},
		{name: "success downgraded by cancel", steps: []Result{ResultSuccess, ResultCancelled}, want: ResultCancelled},
		{name: "failure sticks", steps: []Result{ResultFailed, ResultSuccess}, want: ResultFailed},
		{name: "cancel sticks", steps: []Result{ResultCancelled, ResultSuccess, ResultFailed}, want: ResultCancelled},
		{name: "never back to pending", steps: []Result{ResultSuccess, ResultPending}, want: ResultSuccess},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewCounter(1)
			for _, r := range tt.steps {
				c.SetResult(r)
			}
			require.Equal(t, tt.want, c.Result())
		})
	}
}

func TestCounterFailKeepsFirstError(t *testing.T) {
	t.Parallel()
	first := errors.New("first")
	c := NewCounter(2)
	c.Fail(first)
	c.Fail(errors.New("second"))
	c.Finish(ResultSuccess, nil)
	require.Equal(t, ResultFailed, c.Result())
	require.ErrorIs(t, c.Err(), first)
	require.EqualValues(t, 1, c.Count())
}

func TestCounterReset(t *testing.T) {
	t.Parallel()
	c := NewCounter(1)
	c.Finish(ResultCancelled, nil)
	require.True(t, c.IsComplete())

	c.Reset(2)
	require.Equal(t, ResultPending, c.Result())
	require.EqualValues(t, 2, c.Count())
	require.False(t, c.IsComplete())

	c.Reset(0)
	require.True(t, c.IsComplete())
	<-c.Done()
}

func TestCounterWaitContextTimesOut(t *testing.T) {
	t.Parallel()
	c := NewCounter(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.WaitContext(ctx), context.DeadlineExceeded)
}

func TestCounterConcurrentDecrementReachesZeroOnce(t *testing.T) {
	t.Parallel()
	const n = 1000
	c := NewCounter(n)
	var wg sync.WaitGroup
	for i := 0; i < n*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Finish(ResultSuccess, nil)
		}()
	}
	wg.Wait()
	require.True(t, c.IsComplete())
	require.Equal(t, ResultSuccess, c.Result())
}
