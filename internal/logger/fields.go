package logger

import "go.uber.org/zap"

func WithRequestID(requestID string) zap.Field {
	return zap.String("request_id", requestID)
}

func WithUserID(userID string) zap.Field {
	return zap.String("user_id", userID)
}

func WithConnectionID(connID string) zap.Field {
	return zap.String("connection_id", connID)
}

func WithPostID(postID string) zap.Field {
	return zap.String("post_id", postID)
}

func WithCommunityID(communityID string) zap.Field {
	return zap.String("community_id", communityID)
}

// WithChannel names a bus channel or key.
func WithChannel(channel string) zap.Field {
	return zap.String("channel", channel)
}

func WithIP(ip string) zap.Field {
	return zap.String("ip", ip)
}

func WithStatus(status int) zap.Field {
	return zap.Int("status", status)
}
