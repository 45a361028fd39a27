package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultPruneInterval = time.Hour
)

// PruneService periodically deletes read notifications past the retention
// window.
type PruneService struct {
	notifications *Service
	retention     time.Duration
	interval      time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPruneService(notifications *Service, retention, interval time.Duration) *PruneService {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PruneService{
		notifications: notifications,
		retention:     retention,
		interval:      interval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins the sweep. The first pass runs after one interval.
func (p *PruneService) Start() {
	logger.L().Info("Starting notification retention sweep",
		zap.Duration("retention", p.retention),
		zap.Duration("interval", p.interval))
	p.wg.Add(1)
	go p.run()
}

// Stop cancels the sweep and waits for an in-flight pass.
func (p *PruneService) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *PruneService) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Prune(p.ctx)
		case <-p.ctx.Done():
			return
		}
	}
}

// Prune runs one pass and returns how many rows it deleted.
func (p *PruneService) Prune(ctx context.Context) int64 {
	deleted, err := p.notifications.CleanupOld(ctx, p.retention)
	if err != nil {
		if ctx.Err() == nil {
			logger.ErrorWithFields("notification retention sweep failed", err)
		}
		return 0
	}
	if deleted > 0 {
		metrics.Get().NotificationsPruned.Add(float64(deleted))
		logger.L().Info("Pruned old notifications", zap.Int64("count", deleted))
	}
	return deleted
}
