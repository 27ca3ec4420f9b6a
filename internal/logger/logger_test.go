package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("Should write JSON records with fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Config{Level: "info", JSON: true, Output: &buf})
		l.With("component", "test").Info("hello", "decision_id", 7)
		out := buf.String()
		assert.Contains(t, out, "hello")
		assert.Contains(t, out, "component")
		assert.Contains(t, out, "decision_id")
		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
	})
	t.Run("Should drop records below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Config{Level: "warn", Output: &buf})
		l.Info("quiet")
		assert.Empty(t, buf.String())
		l.Warn("loud")
		assert.Contains(t, buf.String(), "loud")
	})
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)
	d := Discard()
	SetDefault(d)
	assert.Same(t, d, Default())
}
