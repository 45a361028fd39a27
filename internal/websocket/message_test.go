package websocket

import (
	"fmt"
	"testing"
	"time"

	"github.com/agorahq/agora/backend/internal/typing"
	"github.com/stretchr/testify/assert"
)

const (
	testPost      = "6e0f6f1c-5a7e-4b0c-9b1a-0d6c2f1a9a01"
	testComment   = "a1d3b0f2-77b4-4c6e-8f5e-3c2b9d8e7f10"
	testCommunity = "0b7dbb62-3d2e-4f57-bb0c-4a8a3bb6f0a5"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			name: "start typing on post",
			raw:  `{"type":"start_typing","post_id":"` + testPost + `"}`,
			want: Inbound{Kind: InboundStartTyping, Thread: typing.Thread{PostID: testPost}},
		},
		{
			name: "start typing in reply thread",
			raw:  `{"type":"start_typing","post_id":"` + testPost + `","parent_comment_id":"` + testComment + `"}`,
			want: Inbound{Kind: InboundStartTyping, Thread: typing.Thread{PostID: testPost, ParentCommentID: testComment}},
		},
		{
			name: "empty parent means top level",
			raw:  `{"type":"stop_typing","post_id":"` + testPost + `","parent_comment_id":""}`,
			want: Inbound{Kind: InboundStopTyping, Thread: typing.Thread{PostID: testPost}},
		},
		{
			name: "null parent means top level",
			raw:  `{"type":"typing_heartbeat","post_id":"` + testPost + `","parent_comment_id":null}`,
			want: Inbound{Kind: InboundTypingHeartbeat, Thread: typing.Thread{PostID: testPost}},
		},
		{
			name: "uppercase uuid is canonicalized",
			raw:  `{"type":"start_typing","post_id":"6E0F6F1C-5A7E-4B0C-9B1A-0D6C2F1A9A01"}`,
			want: Inbound{Kind: InboundStartTyping, Thread: typing.Thread{PostID: testPost}},
		},
		{
			name: "typing without post",
			raw:  `{"type":"start_typing"}`,
			want: ignored,
		},
		{
			name: "typing with malformed post",
			raw:  `{"type":"start_typing","post_id":"not-a-uuid"}`,
			want: ignored,
		},
		{
			name: "typing with malformed parent",
			raw:  `{"type":"start_typing","post_id":"` + testPost + `","parent_comment_id":"nope"}`,
			want: ignored,
		},
		{
			name: "join community",
			raw:  `{"type":"join_community","community_id":"` + testCommunity + `"}`,
			want: Inbound{Kind: InboundJoinCommunity, CommunityID: testCommunity},
		},
		{
			name: "leave community",
			raw:  `{"type":"leave_community","community_id":"` + testCommunity + `"}`,
			want: Inbound{Kind: InboundLeaveCommunity, CommunityID: testCommunity},
		},
		{
			name: "join without community",
			raw:  `{"type":"join_community"}`,
			want: ignored,
		},
		{
			name: "heartbeat",
			raw:  `{"type":"heartbeat"}`,
			want: Inbound{Kind: InboundHeartbeat},
		},
		{
			name: "subscribe to post is reserved",
			raw:  `{"type":"subscribe_to_post","post_id":"` + testPost + `"}`,
			want: ignored,
		},
		{
			name: "unknown type",
			raw:  `{"type":"dance"}`,
			want: ignored,
		},
		{
			name: "not json",
			raw:  `hello`,
			want: ignored,
		},
		{
			name: "wrong field type",
			raw:  `{"type":"start_typing","post_id":42}`,
			want: ignored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeInbound([]byte(tt.raw)))
		})
	}
}

func TestInboundKindString(t *testing.T) {
	assert.Equal(t, "start_typing", InboundStartTyping.String())
	assert.Equal(t, "heartbeat", InboundHeartbeat.String())
	assert.Equal(t, "ignored", InboundIgnored.String())
	assert.Equal(t, "ignored", InboundKind(99).String())
}

func TestEnvelopeID(t *testing.T) {
	assert.Equal(t, "n1", envelopeID([]byte(`{"type":"notification","id":"n1","data":{}}`)))
	assert.Empty(t, envelopeID([]byte(`{"type":"typing_update","id":"n1"}`)))
	assert.Empty(t, envelopeID([]byte(`{"title":"X"}`)))
	assert.Empty(t, envelopeID([]byte(`garbage`)))
}

func TestRecentIDsWindow(t *testing.T) {
	r := newRecentIDs(3)
	assert.False(t, r.Seen("a"))
	assert.True(t, r.Seen("a"))
	assert.False(t, r.Seen("b"))
	assert.False(t, r.Seen("c"))
	assert.False(t, r.Seen("d"), "evicts a")
	assert.False(t, r.Seen("a"))
	assert.True(t, r.Seen("d"))

	big := newRecentIDs(recentIDWindow)
	for i := 0; i < recentIDWindow; i++ {
		assert.False(t, big.Seen(fmt.Sprint(i)))
	}
	assert.True(t, big.Seen("0"))
}

func TestConnectedFrame(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	c := newConnected("u1", "c1", at)
	assert.Equal(t, "connected", c.Type)
	assert.Equal(t, time.UTC, c.Timestamp.Location())
}
