package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rssi-anomaly/internal/artifact"
	"rssi-anomaly/internal/metrics"
	"rssi-anomaly/internal/models"
)

// ErrPoolStopped пул остановлен и не принимает задания
var ErrPoolStopped = errors.New("prediction pool stopped")

// predictJob одно окно на прогноз; результат пишется в слот по индексу
type predictJob struct {
	ctx    context.Context
	window []float64
	out    *float64
	errOut *error
	wg     *sync.WaitGroup
}

// PredictPool пул воркеров, выполняющих вызовы модели
type PredictPool struct {
	predictor artifact.Predictor
	jobs      chan predictJob
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	workers   int

	// mu защищает stopped: после Stop в очередь не попадает ни одно задание
	mu      sync.RWMutex
	stopped bool
}

// NewPredictPool создает пул; воркеры запускаются через Start
func NewPredictPool(predictor artifact.Predictor, queueSize int) *PredictPool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &PredictPool{
		predictor: predictor,
		jobs:      make(chan predictJob, queueSize),
		stopChan:  make(chan struct{}),
	}
}

// Start запускает обработчики в goroutines
func (p *PredictPool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	p.workers = workers
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.process()
	}
}

// Stop останавливает пул и ждет завершения воркеров
func (p *PredictPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.stopChan)
		p.mu.Unlock()

		p.wg.Wait()
		p.drain()
	})
}

// PredictAll прогнозирует каждое окно; результаты выровнены по индексу окон.
// При отмене контекста или ошибке модели частичный результат не возвращается.
func (p *PredictPool) PredictAll(ctx context.Context, windows [][]float64) ([]float64, error) {
	preds := make([]float64, len(windows))
	errs := make([]error, len(windows))
	if len(windows) == 0 {
		return preds, nil
	}

	start := time.Now()
	defer func() {
		metrics.PredictionLatency.Observe(time.Since(start).Seconds())
	}()

	var wg sync.WaitGroup
	if err := p.enqueue(ctx, windows, preds, errs, &wg); err != nil {
		return nil, err
	}
	metrics.QueueSize.Set(float64(len(p.jobs)))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: prediction cancelled: %v", models.ErrInternal, ctx.Err())
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return preds, nil
}

// enqueue ставит окна в очередь. Пока удерживается mu, Stop не может
// завершить воркеры, поэтому каждое отправленное задание будет выполнено.
func (p *PredictPool) enqueue(ctx context.Context, windows [][]float64, preds []float64, errs []error, wg *sync.WaitGroup) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return fmt.Errorf("%w: %w", models.ErrInternal, ErrPoolStopped)
	}
	for i := range windows {
		wg.Add(1)
		job := predictJob{ctx: ctx, window: windows[i], out: &preds[i], errOut: &errs[i], wg: wg}
		select {
		case p.jobs <- job:
		case <-ctx.Done():
			wg.Done()
			return fmt.Errorf("%w: prediction cancelled: %v", models.ErrInternal, ctx.Err())
		}
	}
	return nil
}

// process обрабатывает задания из канала
func (p *PredictPool) process() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			p.drain()
			return
		case job := <-p.jobs:
			p.run(job)
		}
	}
}

// drain завершает задания, оставшиеся в очереди после остановки
func (p *PredictPool) drain() {
	for {
		select {
		case job := <-p.jobs:
			*job.errOut = fmt.Errorf("%w: %w", models.ErrInternal, ErrPoolStopped)
			job.wg.Done()
		default:
			return
		}
	}
}

func (p *PredictPool) run(job predictJob) {
	defer job.wg.Done()

	if err := job.ctx.Err(); err != nil {
		*job.errOut = fmt.Errorf("%w: prediction cancelled: %v", models.ErrInternal, err)
		return
	}
	pred, err := p.predictor.Predict(job.window)
	if err != nil {
		*job.errOut = err
		return
	}
	*job.out = pred
}

// GetStats возвращает статистику пула
func (p *PredictPool) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"workers":    p.workers,
		"queue_size": len(p.jobs),
		"queue_cap":  cap(p.jobs),
	}
	if p.predictor != nil {
		stats["model_kind"] = p.predictor.Kind()
	}
	return stats
}
