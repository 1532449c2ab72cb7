package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigitCaptchaWithRedisStore(t *testing.T) {
	mr, rc := newTestRedis(t)
	c := NewDigitCaptcha(rc, time.Minute)

	id, image, err := c.Generate()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Contains(t, image, "data:image/png;base64,")

	answer, err := mr.Get("captcha:" + id)
	require.NoError(t, err)
	require.Len(t, answer, 5)

	assert.False(t, c.Verify(id, "wrong"))
	// a wrong guess consumes the challenge too
	assert.False(t, c.Verify(id, answer))
}

func TestDigitCaptchaAnswerIsSingleUse(t *testing.T) {
	mr, rc := newTestRedis(t)
	c := NewDigitCaptcha(rc, time.Minute)

	id, _, err := c.Generate()
	require.NoError(t, err)
	answer, err := mr.Get("captcha:" + id)
	require.NoError(t, err)

	assert.True(t, c.Verify(id, answer))
	assert.False(t, c.Verify(id, answer))
}

func TestDigitCaptchaRejectsEmptyInput(t *testing.T) {
	c := NewDigitCaptcha(nil, time.Minute)

	assert.False(t, c.Verify("", ""))
	assert.False(t, c.Verify("missing", "12345"))
	assert.True(t, NoCaptcha{}.Verify("", ""))
}
