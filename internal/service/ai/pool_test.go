package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"garbageapi/internal/logger"
)

// ========================================
// Pool Tests
// ========================================

func TestPool_OneModelPerWorker(t *testing.T) {
	var built []*MockModel
	factory := func() (Model, error) {
		m := NewMockModel()
		built = append(built, m)
		return m, nil
	}

	pool, err := NewPool(factory, 3, 10, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	if pool.Workers() != 3 || len(built) != 3 {
		t.Fatalf("Expected 3 workers and 3 models, got %d and %d", pool.Workers(), len(built))
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Predict(context.Background(), newTestImage(t, 4, 4)); err != nil {
				t.Errorf("Predict failed: %v", err)
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, m := range built {
		total += m.Calls()
	}
	if total != 12 {
		t.Errorf("Expected 12 inferences, got %d", total)
	}

	if err := pool.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	for i, m := range built {
		if !m.Closed() {
			t.Errorf("Model %d was not closed", i)
		}
	}
}

func TestPool_FactoryFailureClosesBuiltModels(t *testing.T) {
	first := NewMockModel()
	calls := 0
	factory := func() (Model, error) {
		calls++
		if calls == 1 {
			return first, nil
		}
		return nil, errors.New("model file not found")
	}

	if _, err := NewPool(factory, 2, 1, logger.NewNop()); err == nil {
		t.Fatal("Expected error when a worker model cannot be built")
	}
	if !first.Closed() {
		t.Error("Model built before the failure should be closed")
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	m := NewMockModel()
	m.SetPanic("index out of range")
	pool := newTestPool(t, m)

	_, err := pool.Predict(context.Background(), newTestImage(t, 4, 4))
	if err == nil || !strings.Contains(err.Error(), "index out of range") {
		t.Fatalf("Expected panic to surface as error, got %v", err)
	}

	// worker must survive
	m.SetPanic("")
	if _, err := pool.Predict(context.Background(), newTestImage(t, 4, 4)); err != nil {
		t.Errorf("Predict after panic failed: %v", err)
	}
}

func TestPool_CanceledWhileQueuedIsSkipped(t *testing.T) {
	m := NewMockModel()
	gate := m.Block()
	pool := newTestPool(t, m)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Predict(context.Background(), newTestImage(t, 4, 4))
	}()
	waitFor(t, func() bool { return m.Calls() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Predict(ctx, newTestImage(t, 4, 4))
		errCh <- err
	}()
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	close(gate)
	<-done
	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if m.Calls() != 1 {
		t.Errorf("Canceled job should not reach the model, got %d calls", m.Calls())
	}
}

func TestPool_PredictAfterClose(t *testing.T) {
	pool, err := NewPool(func() (Model, error) { return NewMockModel(), nil }, 1, 1, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}

	if _, err := pool.Predict(context.Background(), newTestImage(t, 4, 4)); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
}
