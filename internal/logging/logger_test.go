package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger(&buf, LevelWarn)
	defer SetupLogger(os.Stderr, LevelInfo)

	Info("hidden")
	Warn("visible")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "visible")
}

func TestSetupLoggerUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger(&buf, LogLevel("nonsense"))
	defer SetupLogger(os.Stderr, LevelInfo)

	Debug("hidden")
	Info("visible")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "visible")
}

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "<not set>", MaskSensitive(""))
	assert.Equal(t, "<set>", MaskSensitive("abcd"))

	masked := MaskSensitive("lin_api_0123456789")
	assert.True(t, strings.HasPrefix(masked, "lin_"))
	assert.NotContains(t, masked, "0123456789")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcde...", Truncate("abcdefgh", 5))
}
