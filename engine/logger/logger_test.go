package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: "warn", Prefix: "test"})

	l.Infof("hidden %d", 1)
	assert.Empty(t, buf.String())

	l.Warnf("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestWithAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: "debug"}).With("pass", "shadow")

	l.Debugf("encoded")
	assert.Contains(t, buf.String(), "pass=shadow")
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.With("k", "v").Errorf("nothing %s", "here")
	})
}
