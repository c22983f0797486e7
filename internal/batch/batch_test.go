package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/steveyegge/ferry/internal/progress"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunKeepsInputOrder(t *testing.T) {
	inputs := make([]int, 40)
	for i := range inputs {
		inputs[i] = i
	}
	rng := rand.New(rand.NewSource(1))
	delays := make([]time.Duration, len(inputs))
	for i := range delays {
		delays[i] = time.Duration(rng.Intn(3)) * time.Millisecond
	}

	results, summary := Run(context.Background(), inputs, func(_ context.Context, n int) (string, error) {
		time.Sleep(delays[n])
		if n%7 == 0 {
			return "", fmt.Errorf("item %d failed", n)
		}
		return fmt.Sprintf("out-%d", n), nil
	}, Options[int]{Name: "numbers", Concurrency: 4})

	require.Len(t, results, len(inputs))
	for i, r := range results {
		assert.Equal(t, i, r.Input)
		if i%7 == 0 {
			assert.Error(t, r.Err)
			assert.False(t, r.OK())
		} else {
			assert.NoError(t, r.Err)
			assert.Equal(t, fmt.Sprintf("out-%d", i), r.Output)
		}
	}
	assert.Equal(t, Summary{Total: 40, Succeeded: 34, Failed: 6}, summary)
	assert.Len(t, Failures(results), 6)
}

func TestRunRespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	inputs := make([]int, 20)

	Run(context.Background(), inputs, func(context.Context, int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	}, Options[int]{Concurrency: 3})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRunProgressIsMonotonic(t *testing.T) {
	rec := &progress.Recorder{}
	inputs := []string{"a", "b", "c", "d", "e", "f", "g"}

	Run(context.Background(), inputs, func(_ context.Context, s string) (int, error) {
		if s == "c" {
			return 0, errors.New("boom")
		}
		return len(s), nil
	}, Options[string]{Concurrency: 3, Progress: rec, Label: func(s string) string { return "item " + s }})

	var counts []progress.Count
	for _, e := range rec.Events() {
		if e.Count != nil {
			counts = append(counts, *e.Count)
		}
	}
	require.Len(t, counts, len(inputs)+1)
	assert.Equal(t, progress.Count{Processed: 0, Total: 7}, counts[0])

	complete := 0
	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i].Processed, counts[i-1].Processed)
		assert.Equal(t, 7, counts[i].Total)
		if counts[i].Processed == counts[i].Total {
			complete++
		}
	}
	assert.Equal(t, 1, complete)
}

func TestRunRecoversPanics(t *testing.T) {
	results, summary := Run(context.Background(), []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			panic("bad input")
		}
		return n * 10, nil
	}, Options[int]{Concurrency: 2})

	var pe *PanicError
	require.ErrorAs(t, results[1].Err, &pe)
	assert.Equal(t, "bad input", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, 30, results[2].Output)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunEmpty(t *testing.T) {
	rec := &progress.Recorder{}
	results, summary := Run(context.Background(), nil, func(context.Context, int) (int, error) {
		t.Fatal("op called for empty input")
		return 0, nil
	}, Options[int]{Progress: rec})

	assert.Empty(t, results)
	assert.Equal(t, Summary{}, summary)
	events := rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, &progress.Count{Processed: 0, Total: 0}, events[0].Count)
}
