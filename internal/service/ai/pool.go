package ai

import (
	"context"
	"sync"
	"sync/atomic"

	"garbageapi/internal/logger"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// ErrPoolClosed is returned for predictions submitted after Close.
var ErrPoolClosed = errors.New("inference pool is closed")

// ModelFactory builds one Model per worker.
type ModelFactory func() (Model, error)

const (
	jobPending int32 = iota
	jobRunning
	jobCanceled
)

type job struct {
	img   gocv.Mat
	state atomic.Int32
	done  chan jobResult
}

type jobResult struct {
	boxes []Box
	err   error
}

// Pool serializes inference onto a fixed set of workers, each owning its own Model.
type Pool struct {
	models []Model
	jobs   chan *job
	logger *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool builds the models and starts one worker per model. If any model fails to
// load, the ones already built are closed and the error is returned.
func NewPool(factory ModelFactory, workers, queueSize int, logger *logger.Logger) (*Pool, error) {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	models := make([]Model, 0, workers)
	for i := 0; i < workers; i++ {
		m, err := factory()
		if err != nil {
			for _, built := range models {
				err = multierr.Append(err, built.Close())
			}
			return nil, errors.Wrapf(err, "failed to build model for worker %d", i)
		}
		models = append(models, m)
	}

	p := &Pool{
		models: models,
		jobs:   make(chan *job, queueSize),
		logger: logger,
	}
	for i, m := range models {
		p.wg.Add(1)
		go p.worker(i, m)
	}

	p.logger.Info("🔧 Inference pool started with %d worker(s), queue size %d", workers, queueSize)
	return p, nil
}

// Predict queues img for inference and waits for the result. The image must stay
// valid until Predict returns. If ctx ends while the job is still queued, the job is
// dropped; once a worker has started on it, Predict waits for that run to finish.
func (p *Pool) Predict(ctx context.Context, img gocv.Mat) ([]Box, error) {
	j := &job{img: img, done: make(chan jobResult, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	select {
	case p.jobs <- j:
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	}
	p.mu.RUnlock()

	select {
	case r := <-j.done:
		return r.boxes, r.err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobPending, jobCanceled) {
			return nil, ctx.Err()
		}
		r := <-j.done
		return r.boxes, r.err
	}
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return len(p.models)
}

// Close stops accepting work, drains queued jobs and releases every model.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()

	var err error
	for _, m := range p.models {
		err = multierr.Append(err, m.Close())
	}
	p.logger.Info("🛑 All inference workers stopped")
	return err
}

func (p *Pool) worker(id int, m Model) {
	defer p.wg.Done()

	for j := range p.jobs {
		if !j.state.CompareAndSwap(jobPending, jobRunning) {
			continue
		}
		j.done <- p.run(id, m, j.img)
	}
}

func (p *Pool) run(id int, m Model, img gocv.Mat) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Inference worker %d panicked: %v", id, r)
			res = jobResult{err: errors.Errorf("inference failed: %v", r)}
		}
	}()

	boxes, err := m.Predict(img)
	return jobResult{boxes: boxes, err: err}
}
