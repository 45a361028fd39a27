package typing

import (
	"context"
	"sync"
	"time"

	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/metrics"
	"go.uber.org/zap"
)

// CleanupService periodically sweeps expired typing indicators.
type CleanupService struct {
	typing   *Service
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration
	wg       sync.WaitGroup
}

// NewCleanupService creates a sweep bound to the given register.
func NewCleanupService(typing *Service, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = DefaultTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupService{
		typing:   typing,
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
	}
}

// Start begins the periodic sweep
func (s *CleanupService) Start() {
	logger.L().Info("Starting typing cleanup service", zap.Duration("interval", s.interval))
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the sweep and waits for an in-flight pass to finish.
func (s *CleanupService) Stop() {
	logger.L().Info("Stopping typing cleanup service")
	s.cancel()
	s.wg.Wait()
}

func (s *CleanupService) run() {
	defer s.wg.Done()

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *CleanupService) sweep() {
	deleted, err := s.typing.CleanupExpired(s.ctx)
	if err != nil {
		if s.ctx.Err() == nil {
			logger.ErrorWithFields("typing cleanup failed", err)
		}
		return
	}
	if deleted > 0 {
		metrics.Get().TypingSweepDeleted.Add(float64(deleted))
		logger.L().Info("Cleaned up expired typing indicators", zap.Int64("count", deleted))
	}
}
