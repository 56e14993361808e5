package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(12)
	require.NoError(t, err)

	assert.Len(t, code, 24)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]+$`), code)

	other, err := GenerateCode(12)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestGenerateOTP(t *testing.T) {
	otp, err := GenerateOTP(6)
	require.NoError(t, err)

	assert.Len(t, otp, 6)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]+$`), otp)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	b := NewBreaker("test")

	for i := 0; i < 5; i++ {
		assert.True(t, b.Allow())
		b.Record(false)
	}

	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("test")

	for i := 0; i < 4; i++ {
		b.Allow()
		b.Record(false)
	}
	b.Allow()
	b.Record(true)

	for i := 0; i < 4; i++ {
		b.Allow()
		b.Record(false)
	}

	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenAdmitsSingleProbe(t *testing.T) {
	b := NewBreaker("test")

	for i := 0; i < 5; i++ {
		b.Allow()
		b.Record(false)
	}
	require.Equal(t, BreakerOpen, b.State())

	// pretend the open timeout has elapsed
	b.mutex.Lock()
	b.openedAt = time.Now().Add(-time.Minute)
	b.mutex.Unlock()

	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "only one probe at a time while half-open")

	b.Record(true)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := NewBreaker("test")

	for i := 0; i < 5; i++ {
		b.Allow()
		b.Record(false)
	}

	b.mutex.Lock()
	b.openedAt = time.Now().Add(-time.Minute)
	b.mutex.Unlock()

	require.True(t, b.Allow())
	b.Record(false)

	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
}
