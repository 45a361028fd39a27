package notifications

import (
	"time"

	"github.com/agorahq/agora/backend/internal/metrics"
	"github.com/agorahq/agora/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// seedAged stores a notification for bob that is age old.
func (s *ServiceSuite) seedAged(read bool, age time.Duration) string {
	n, err := s.svc.Create(s.ctx, s.reply(s.bob, s.alice))
	s.Require().NoError(err)
	s.Require().NoError(s.db.Model(&models.Notification{}).
		Where("id = ?", n.ID).
		Updates(map[string]any{"is_read": read, "created_at": time.Now().Add(-age)}).Error)
	return n.ID
}

func (s *ServiceSuite) remainingIDs() []string {
	list, err := s.svc.List(s.ctx, s.bob, 0, 0)
	s.Require().NoError(err)
	ids := make([]string, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	return ids
}

func (s *ServiceSuite) TestCleanupOldKeepsUnreadAndRecent() {
	oldRead := s.seedAged(true, 40*24*time.Hour)
	oldUnread := s.seedAged(false, 40*24*time.Hour)
	recentRead := s.seedAged(true, time.Hour)

	deleted, err := s.svc.CleanupOld(s.ctx, DefaultRetention)
	s.Require().NoError(err)
	s.EqualValues(1, deleted)

	remaining := s.remainingIDs()
	s.NotContains(remaining, oldRead)
	s.ElementsMatch([]string{oldUnread, recentRead}, remaining)
}

func (s *ServiceSuite) TestPruneCountsDeletedRows() {
	s.seedAged(true, 3*time.Hour)
	s.seedAged(true, 3*time.Hour)
	kept := s.seedAged(true, time.Minute)

	pruner := NewPruneService(s.svc, 2*time.Hour, time.Hour)
	before := testutil.ToFloat64(metrics.Get().NotificationsPruned)

	s.EqualValues(2, pruner.Prune(s.ctx))
	s.Equal(before+2, testutil.ToFloat64(metrics.Get().NotificationsPruned))
	s.Equal([]string{kept}, s.remainingIDs())

	s.Zero(pruner.Prune(s.ctx), "a second pass has nothing left to remove")
}

func (s *ServiceSuite) TestPruneServiceRunsOnInterval() {
	s.seedAged(true, 3*time.Hour)

	pruner := NewPruneService(s.svc, time.Hour, 10*time.Millisecond)
	pruner.Start()
	defer pruner.Stop()

	s.Eventually(func() bool {
		return len(s.remainingIDs()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestPruneServiceStopIsPrompt() {
	pruner := NewPruneService(s.svc, 0, 0)
	s.Equal(DefaultRetention, pruner.retention)
	s.Equal(DefaultPruneInterval, pruner.interval)

	pruner.Start()
	done := make(chan struct{})
	go func() {
		pruner.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("Stop did not return")
	}
}
