package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/emonet-train/collate"
	"github.com/maastricht-university/emonet-train/dataset"
	"github.com/maastricht-university/emonet-train/dataset/datasettest"
)

// memDataset encodes the sample index in Emotion.
type memDataset struct {
	n      int
	gets   atomic.Int64
	failAt int
}

func (d *memDataset) Len() int { return d.n }

func (d *memDataset) Get(i int) (dataset.Sample, error) {
	d.gets.Add(1)
	if d.failAt > 0 && i == d.failAt {
		return dataset.Sample{}, fmt.Errorf("sample %d: disk on fire", i)
	}
	return dataset.Sample{Mel: datasettest.Mel(i, 2, 3+i%4), Emotion: i}, nil
}

func collect(t *testing.T, l *Loader) [][]int {
	t.Helper()
	var out [][]int
	for b, err := range l.Batches(context.Background()) {
		require.NoError(t, err)
		out = append(out, b.Emotions)
	}
	return out
}

func TestBatchesInOrder(t *testing.T) {
	for _, workers := range []int{0, 1, 2, 5} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			l := New(&memDataset{n: 10}, collate.Dynamic, Options{BatchSize: 4, NumWorkers: workers, Prefetch: 2})
			assert.Equal(t, 3, l.Len())
			assert.Equal(t, [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9}}, collect(t, l))
		})
	}
}

func TestBatchesEmpty(t *testing.T) {
	l := New(&memDataset{n: 0}, collate.Dynamic, Options{BatchSize: 4, NumWorkers: 2, Prefetch: 2})
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, collect(t, l))
}

func TestShuffleIsSeededPermutation(t *testing.T) {
	flat := func(bs [][]int) []int {
		var out []int
		for _, b := range bs {
			out = append(out, b...)
		}
		return out
	}
	a := New(&memDataset{n: 20}, collate.Dynamic, Options{BatchSize: 3, NumWorkers: 2, Prefetch: 1, Shuffle: true, Seed: 7})
	b := New(&memDataset{n: 20}, collate.Dynamic, Options{BatchSize: 3, NumWorkers: 2, Prefetch: 1, Shuffle: true, Seed: 7})

	first := flat(collect(t, a))
	assert.Equal(t, first, flat(collect(t, b)))

	sorted := append([]int(nil), first...)
	sort.Ints(sorted)
	for i, v := range sorted {
		assert.Equal(t, i, v)
	}
	// a new pass draws a new permutation
	assert.NotEqual(t, first, flat(collect(t, a)))
}

func TestBatchesStopsAtError(t *testing.T) {
	ds := &memDataset{n: 12, failAt: 5}
	l := New(ds, collate.Dynamic, Options{BatchSize: 2, NumWorkers: 2, Prefetch: 2})

	var got int
	var lastErr error
	for b, err := range l.Batches(context.Background()) {
		if err != nil {
			lastErr = err
			continue
		}
		got += b.Size()
	}
	assert.Equal(t, 4, got)
	assert.ErrorContains(t, lastErr, "disk on fire")
	assert.ErrorContains(t, lastErr, "loader batch 2")
}

func TestCollateErrorPropagates(t *testing.T) {
	bad := func([]dataset.Sample) (*collate.Batch, error) { return nil, collate.ErrShapeMismatch }
	l := New(&memDataset{n: 3}, bad, Options{BatchSize: 1, NumWorkers: 1, Prefetch: 1})
	for _, err := range l.Batches(context.Background()) {
		assert.True(t, errors.Is(err, collate.ErrShapeMismatch))
	}
}

func TestPrefetchIsBounded(t *testing.T) {
	ds := &memDataset{n: 100}
	l := New(ds, collate.Dynamic, Options{BatchSize: 1, NumWorkers: 2, Prefetch: 2})

	for _, err := range l.Batches(context.Background()) {
		require.NoError(t, err)
		// one consumed, two buffered per worker, one blocked on send per worker
		require.Eventually(t, func() bool { return ds.gets.Load() == 7 }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.EqualValues(t, 7, ds.gets.Load())
		break
	}
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(&memDataset{n: 50}, collate.Dynamic, Options{BatchSize: 1, NumWorkers: 2, Prefetch: 1})

	n := 0
	var lastErr error
	for _, err := range l.Batches(ctx) {
		if err != nil {
			lastErr = err
			break
		}
		n++
		if n == 3 {
			cancel()
		}
	}
	assert.Less(t, n, 50)
	assert.ErrorIs(t, lastErr, context.Canceled)
}
