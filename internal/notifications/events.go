package notifications

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/models"
	"go.uber.org/zap"
)

// excerptLength is how many characters of the triggering text a
// notification quotes.
const excerptLength = 100

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// NotifyCommentReply tells a comment's author about a reply to it.
func (s *Service) NotifyCommentReply(ctx context.Context, commentAuthorID, replierID, postID, commentID, reply string) (*models.Notification, error) {
	return s.notify(ctx, CreateParams{
		RecipientID: commentAuthorID,
		ActorID:     replierID,
		Type:        models.NotificationCommentReply,
		Message:     excerpt(reply),
		PostID:      postID,
		CommentID:   commentID,
	}, func(actor string) string { return actor + " replied to your comment" })
}

// NotifyPostReply tells a post's author about a new top-level comment.
func (s *Service) NotifyPostReply(ctx context.Context, postAuthorID, commenterID, postID, commentID, comment string) (*models.Notification, error) {
	return s.notify(ctx, CreateParams{
		RecipientID: postAuthorID,
		ActorID:     commenterID,
		Type:        models.NotificationPostReply,
		Message:     excerpt(comment),
		PostID:      postID,
		CommentID:   commentID,
	}, func(actor string) string { return actor + " commented on your post" })
}

// NotifyMention tells a user they were mentioned in a post or comment.
func (s *Service) NotifyMention(ctx context.Context, mentionedID, mentionerID, postID, commentID, content string) (*models.Notification, error) {
	return s.notify(ctx, CreateParams{
		RecipientID: mentionedID,
		ActorID:     mentionerID,
		Type:        models.NotificationMention,
		Message:     excerpt(content),
		PostID:      postID,
		CommentID:   commentID,
	}, func(actor string) string { return actor + " mentioned you" })
}

// NotifyUpvote tells an author their post, or their comment when postID is
// empty, was upvoted.
func (s *Service) NotifyUpvote(ctx context.Context, authorID, voterID, postID, commentID string) (*models.Notification, error) {
	target := "comment"
	if postID != "" {
		target = "post"
	}
	return s.notify(ctx, CreateParams{
		RecipientID: authorID,
		ActorID:     voterID,
		Type:        models.NotificationUpvote,
		PostID:      postID,
		CommentID:   commentID,
	}, func(actor string) string { return actor + " upvoted your " + target })
}

func (s *Service) NotifyFollow(ctx context.Context, followedID, followerID string) (*models.Notification, error) {
	return s.notify(ctx, CreateParams{
		RecipientID: followedID,
		ActorID:     followerID,
		Type:        models.NotificationFollow,
	}, func(actor string) string { return actor + " started following you" })
}

// NotifyCommunityInvite tells a user they were invited to a community. The
// community service owns names, so the caller passes it.
func (s *Service) NotifyCommunityInvite(ctx context.Context, invitedID, inviterID, communityID, communityName string) (*models.Notification, error) {
	if communityID == "" {
		return nil, apperrors.ErrMissingCommunityID
	}
	return s.notify(ctx, CreateParams{
		RecipientID: invitedID,
		ActorID:     inviterID,
		Type:        models.NotificationCommunityInvite,
		CommunityID: communityID,
	}, func(actor string) string { return actor + " invited you to join r/" + communityName })
}

// ProcessMentions notifies every known user mentioned as @name in content,
// once each. Unknown names are skipped and a failed notification does not
// stop the others. It returns how many users were notified.
func (s *Service) ProcessMentions(ctx context.Context, content, mentionerID, postID, commentID string) (int, error) {
	names := ExtractMentions(content)
	if len(names) == 0 {
		return 0, nil
	}
	if s.dir == nil {
		return 0, errNoDirectory
	}
	users, err := s.dir.FindByUsernames(ctx, names)
	if err != nil {
		return 0, fmt.Errorf("resolve mentions: %w", err)
	}

	notified := 0
	for _, name := range names {
		user, ok := users[name]
		if !ok {
			continue
		}
		n, err := s.NotifyMention(ctx, user.UserID, mentionerID, postID, commentID, content)
		if err != nil {
			logger.WarnWithFields("mention notification failed", err, logger.WithUserID(user.UserID))
			continue
		}
		if n != nil {
			notified++
		}
	}
	return notified, nil
}

// ExtractMentions returns the distinct @usernames in content in order of
// first appearance.
func ExtractMentions(content string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

var errNoDirectory = errors.New("notifications: no user directory configured")

// notify creates a notification titled after the actor's username. Unlike
// Create, an unknown actor is an error.
func (s *Service) notify(ctx context.Context, p CreateParams, title func(actor string) string) (*models.Notification, error) {
	if p.ActorID == "" {
		return nil, apperrors.ErrMissingUserID
	}
	if p.ActorID == p.RecipientID {
		return nil, nil
	}
	if s.dir == nil {
		return nil, errNoDirectory
	}
	actor, err := s.dir.GetDisplayInfo(ctx, p.ActorID)
	if err != nil {
		return nil, fmt.Errorf("%s notification: %w", p.Type, err)
	}

	p.Title = title(actor.Username)
	n, err := s.create(ctx, p, actor)
	if err == nil {
		logger.L().Debug("event notification created", zap.String("type", string(p.Type)), logger.WithUserID(p.RecipientID))
	}
	return n, err
}

// excerpt quotes the first characters of text.
func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) > excerptLength {
		runes = runes[:excerptLength]
	}
	return `"` + string(runes) + `"`
}
