package cache

// Key and channel names shared by every process attached to the bus.

const GlobalNotificationsChannel = "global_notifications"

func UserOnlineKey(userID string) string { return "user_online:" + userID }

func CommunityOnlineKey(communityID string) string { return "community_online:" + communityID }

func ConnectionsKey(userID string) string { return "ws_connections:" + userID }

func NotificationQueueKey(userID string) string { return "notification_queue:" + userID }

func DisplayInfoKey(userID string) string { return "display_info:" + userID }

func UpgradeRateLimitKey(userID string) string { return "rate_limit:ws:" + userID }

func UserNotificationsChannel(userID string) string { return "user_notifications:" + userID }

func PostTypingChannel(postID string) string { return "post_typing:" + postID }

func CommentTypingChannel(postID, parentCommentID string) string {
	return "comment_typing:" + postID + ":" + parentCommentID
}

func CommunityPresenceChannel(communityID string) string { return "community_presence:" + communityID }

func CommunityUpdatesChannel(communityID string) string { return "community_updates:" + communityID }
