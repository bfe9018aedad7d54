package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestApplyMode(t *testing.T) {
	ApplyMode("debug")
	assert.Equal(t, zap.DebugLevel, Level())

	ApplyMode("release")
	assert.Equal(t, zap.InfoLevel, Level())
}

func TestLogUsableBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Log.Info("not initialised yet")
	})
}
