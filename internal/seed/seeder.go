// Package seed fills a development database with fake users and
// notifications.
package seed

import (
	"errors"
	"fmt"
	"time"

	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/models"
	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db    *gorm.DB
	faker *gofakeit.Faker
}

// NewSeeder creates a seeder. A zero seed picks a random one.
func NewSeeder(db *gorm.DB, seed uint64) *Seeder {
	return &Seeder{db: db, faker: gofakeit.New(seed)}
}

var notificationTypes = []models.NotificationType{
	models.NotificationCommentReply,
	models.NotificationPostReply,
	models.NotificationMention,
	models.NotificationUpvote,
	models.NotificationCommunityInvite,
}

// SeedDev creates users fake users and up to perUser notifications for each.
func (s *Seeder) SeedDev(users, perUser int) error {
	logger.L().Info("Creating users...", zap.Int("count", users))
	created, err := s.SeedUsers(users)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.L().Info("Creating notifications...", zap.Int("per_user", perUser))
	n, err := s.seedNotifications(created, perUser)
	if err != nil {
		return fmt.Errorf("failed to seed notifications: %w", err)
	}

	logger.L().Info("Seeding complete", zap.Int("users", len(created)), zap.Int("notifications", n))
	return nil
}

// SeedUsers creates count users with unique usernames.
func (s *Seeder) SeedUsers(count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	taken := map[string]bool{}

	for len(users) < count {
		username := s.faker.Username()
		if taken[username] {
			continue
		}
		taken[username] = true

		var existing models.User
		err := s.db.Where("username = ?", username).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		u := models.User{
			Username:    username,
			DisplayName: s.faker.Name(),
			AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		}
		if err := s.db.Create(&u).Error; err != nil {
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Seeder) seedNotifications(users []models.User, perUser int) (int, error) {
	if len(users) < 2 || perUser <= 0 {
		return 0, nil
	}

	var batch []models.Notification
	for _, recipient := range users {
		count := s.faker.IntRange(0, perUser)
		for i := 0; i < count; i++ {
			actor := users[s.faker.IntRange(0, len(users)-1)]
			if actor.ID == recipient.ID {
				continue
			}
			actorID := actor.ID
			postID := s.faker.UUID()
			batch = append(batch, models.Notification{
				RecipientID: recipient.ID,
				ActorID:     &actorID,
				Type:        notificationTypes[s.faker.IntRange(0, len(notificationTypes)-1)],
				Title:       s.faker.HipsterWord() + " " + s.faker.Word(),
				Message:     s.faker.HipsterSentence(),
				PostID:      &postID,
				IsRead:      s.faker.Bool(),
				CreatedAt:   s.faker.DateRange(time.Now().Add(-30*24*time.Hour), time.Now()),
			})
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := s.db.CreateInBatches(batch, 200).Error; err != nil {
		return 0, err
	}
	return len(batch), nil
}

// Clean removes every row the seeder can create.
func (s *Seeder) Clean() error {
	for _, table := range []string{"notifications", "comment_typing_indicators", "users"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}
