package websocket

import (
	"encoding/json"
	"time"

	"github.com/agorahq/agora/backend/internal/typing"
	"github.com/google/uuid"
)

// InboundKind is the decoded type of a client control message.
type InboundKind int

const (
	// InboundIgnored covers unknown types, reserved types such as
	// subscribe_to_post, and messages missing a required field.
	InboundIgnored InboundKind = iota
	InboundStartTyping
	InboundStopTyping
	InboundTypingHeartbeat
	InboundJoinCommunity
	InboundLeaveCommunity
	InboundHeartbeat
)

func (k InboundKind) String() string {
	switch k {
	case InboundStartTyping:
		return "start_typing"
	case InboundStopTyping:
		return "stop_typing"
	case InboundTypingHeartbeat:
		return "typing_heartbeat"
	case InboundJoinCommunity:
		return "join_community"
	case InboundLeaveCommunity:
		return "leave_community"
	case InboundHeartbeat:
		return "heartbeat"
	default:
		return "ignored"
	}
}

// Inbound is a validated client message. Thread is set for the typing kinds,
// CommunityID for the community kinds.
type Inbound struct {
	Kind        InboundKind
	Thread      typing.Thread
	CommunityID string
}

type wireInbound struct {
	Type            string          `json:"type"`
	PostID          *string         `json:"post_id,omitempty"`
	ParentCommentID *string         `json:"parent_comment_id,omitempty"`
	CommunityID     *string         `json:"community_id,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

var ignored = Inbound{Kind: InboundIgnored}

// DecodeInbound turns a raw client frame into an Inbound. Anything that does
// not parse or validate decodes to InboundIgnored.
func DecodeInbound(data []byte) Inbound {
	var w wireInbound
	if err := json.Unmarshal(data, &w); err != nil {
		return ignored
	}

	switch w.Type {
	case "start_typing":
		return typingInbound(InboundStartTyping, w)
	case "stop_typing":
		return typingInbound(InboundStopTyping, w)
	case "typing_heartbeat":
		return typingInbound(InboundTypingHeartbeat, w)
	case "join_community":
		return communityInbound(InboundJoinCommunity, w)
	case "leave_community":
		return communityInbound(InboundLeaveCommunity, w)
	case "heartbeat":
		return Inbound{Kind: InboundHeartbeat}
	default:
		return ignored
	}
}

func typingInbound(kind InboundKind, w wireInbound) Inbound {
	thread, ok := decodeThread(w)
	if !ok {
		return ignored
	}
	return Inbound{Kind: kind, Thread: thread}
}

func communityInbound(kind InboundKind, w wireInbound) Inbound {
	id, ok := validID(w.CommunityID)
	if !ok {
		return ignored
	}
	return Inbound{Kind: kind, CommunityID: id}
}

func decodeThread(w wireInbound) (typing.Thread, bool) {
	postID, ok := validID(w.PostID)
	if !ok {
		return typing.Thread{}, false
	}
	t := typing.Thread{PostID: postID}
	if w.ParentCommentID != nil && *w.ParentCommentID != "" {
		parent, ok := validID(w.ParentCommentID)
		if !ok {
			return typing.Thread{}, false
		}
		t.ParentCommentID = parent
	}
	return t, true
}

// validID accepts a present, well-formed uuid and returns it canonicalized.
func validID(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// Connected is the first frame of every session.
type Connected struct {
	Type         string    `json:"type"`
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
	Timestamp    time.Time `json:"timestamp"`
}

func newConnected(userID, connectionID string, at time.Time) Connected {
	return Connected{Type: "connected", UserID: userID, ConnectionID: connectionID, Timestamp: at.UTC()}
}

// envelopeID returns the id of a notification envelope, or "" for any other
// outbound message.
func envelopeID(msg []byte) string {
	var head struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(msg, &head); err != nil || head.Type != "notification" {
		return ""
	}
	return head.ID
}

// recentIDs remembers the last N notification ids written to a connection.
// It is owned by a single goroutine.
type recentIDs struct {
	ring []string
	next int
	set  map[string]struct{}
}

func newRecentIDs(n int) *recentIDs {
	return &recentIDs{ring: make([]string, n), set: make(map[string]struct{}, n)}
}

// Seen records id and reports whether it was already present.
func (r *recentIDs) Seen(id string) bool {
	if _, ok := r.set[id]; ok {
		return true
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ring[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ring)
	return false
}
