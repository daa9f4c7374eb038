// Package loader batches a dataset with a small pool of prefetching workers.
package loader

import (
	"context"
	"fmt"
	"iter"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/emonet-train/collate"
	"github.com/maastricht-university/emonet-train/dataset"
)

type Dataset interface {
	Len() int
	Get(i int) (dataset.Sample, error)
}

type Options struct {
	BatchSize  int
	NumWorkers int // 0 loads on the consuming goroutine
	Prefetch   int // finished batches buffered per worker
	Shuffle    bool
	Seed       int64
	Log        logrus.FieldLogger
}

type Loader struct {
	ds      Dataset
	collate collate.Func
	opts    Options
	rng     *rand.Rand
}

func New(ds Dataset, fn collate.Func, opts Options) *Loader {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.NumWorkers > 0 && opts.Prefetch < 1 {
		opts.Prefetch = 1
	}
	if opts.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		opts.Log = l
	}
	return &Loader{ds: ds, collate: fn, opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
}

// Len is the number of batches per pass; the last batch may be short.
func (l *Loader) Len() int {
	n := l.ds.Len()
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

func (l *Loader) BatchSize() int { return l.opts.BatchSize }

type result struct {
	batch *collate.Batch
	err   error
}

// Batches yields one pass over the dataset in order. Batch i is built by worker
// i % NumWorkers. Iteration stops after the first error.
func (l *Loader) Batches(ctx context.Context) iter.Seq2[*collate.Batch, error] {
	order := l.order()
	nb := l.Len()
	return func(yield func(*collate.Batch, error) bool) {
		if l.opts.NumWorkers == 0 {
			for i := 0; i < nb; i++ {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				b, err := l.fetch(order, i)
				if !yield(b, err) || err != nil {
					return
				}
			}
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		defer func() {
			cancel()
			wg.Wait()
		}()

		workers := min(l.opts.NumWorkers, max(nb, 1))
		outs := make([]chan result, workers)
		for w := range outs {
			outs[w] = make(chan result, l.opts.Prefetch)
			wg.Add(1)
			go l.work(ctx, &wg, w, workers, nb, order, outs[w])
		}

		for i := 0; i < nb; i++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			var r result
			select {
			case r = <-outs[i%workers]:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
			if !yield(r.batch, r.err) || r.err != nil {
				return
			}
		}
	}
}

func (l *Loader) work(ctx context.Context, wg *sync.WaitGroup, id, workers, nb int, order []int, out chan<- result) {
	defer wg.Done()
	for i := id; i < nb; i += workers {
		b, err := l.fetch(order, i)
		select {
		case out <- result{batch: b, err: err}:
		case <-ctx.Done():
			l.opts.Log.WithField("worker", id).Debug("loader worker stopping")
			return
		}
		if err != nil {
			return
		}
	}
}

func (l *Loader) order() []int {
	n := l.ds.Len()
	if l.opts.Shuffle {
		return l.rng.Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func (l *Loader) fetch(order []int, batch int) (*collate.Batch, error) {
	lo := batch * l.opts.BatchSize
	hi := min(lo+l.opts.BatchSize, len(order))
	samples := make([]dataset.Sample, 0, hi-lo)
	for _, idx := range order[lo:hi] {
		s, err := l.ds.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("loader batch %d: %w", batch, err)
		}
		samples = append(samples, s)
	}
	b, err := l.collate(samples)
	if err != nil {
		return nil, fmt.Errorf("loader batch %d: %w", batch, err)
	}
	return b, nil
}
