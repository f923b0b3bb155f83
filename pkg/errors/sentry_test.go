package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/driver-agent/pkg/config"
)

func TestInitSentryDisabledWithoutDSN(t *testing.T) {
	enabled, err := InitSentry(config.SentryConfig{})
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestCaptureNilErrorIsNoOp(t *testing.T) {
	assert.Nil(t, CaptureError(nil))
	assert.Nil(t, CaptureErrorWithRide(nil, "req-100"))
}
