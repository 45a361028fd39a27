package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("post").Status)
	assert.Equal(t, "post not found", NotFound("post").Message)
	assert.Equal(t, http.StatusTooManyRequests, RateLimited("").Status)
	assert.Equal(t, "rate limit exceeded", RateLimited("").Message)
	assert.Equal(t, http.StatusServiceUnavailable, ServiceUnavailable("redis").Status)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "BAD_REQUEST: bad (field: post_id)", InvalidField("post_id", "bad").Error())
	assert.Equal(t, "UNAUTHORIZED: nope", Unauthorized("nope").Error())
}

func TestFromError(t *testing.T) {
	wrapped := fmt.Errorf("start typing: %w", ErrMissingPostID)
	apiErr := FromError(wrapped)
	assert.Equal(t, ErrBadRequest, apiErr.Code)
	assert.Equal(t, "post_id", apiErr.Field)

	assert.Equal(t, "community_id", FromError(ErrMissingCommunityID).Field)

	original := NotFound("user")
	assert.Same(t, original, FromError(fmt.Errorf("lookup: %w", original)))

	assert.Equal(t, ErrInternalError, FromError(fmt.Errorf("boom")).Code)
}

func TestUnknownCodeDefaultsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("WAT").StatusCode())
}
