package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelNormal, &buf)

	log.Debug("hidden %d", 1)
	log.Info("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")

	buf.Reset()
	log.SetLevel(LevelOff)
	log.Error("nothing")
	assert.Empty(t, buf.String())

	log.SetLevel(LevelVerbose)
	log.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestNamedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(LevelNormal, &buf)
	sub := root.Named("cache")

	root.SetLevel(LevelOff)
	sub.Info("muted")
	assert.Empty(t, buf.String())

	root.SetLevel(LevelNormal)
	sub.Warn("stale entry")
	out := buf.String()
	assert.Contains(t, out, "component=cache")
	assert.Contains(t, out, "stale entry")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithFormat(LevelNormal, &buf, FormatJSON).With("session", "abc")
	log.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"session":"abc"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelOff, ParseLevel("off"))
	assert.Equal(t, LevelVerbose, ParseLevel("debug"))
	assert.Equal(t, LevelNormal, ParseLevel("info"))
}
