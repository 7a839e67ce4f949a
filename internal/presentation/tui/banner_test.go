package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
)

func TestPrintBanner_PlainWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "|_.__/")
	assert.Equal(t, 7, strings.Count(buf.String(), "\n"))
}

func TestStyler_PlainWhenNotATerminal(t *testing.T) {
	s := tui.NewStyler(&bytes.Buffer{})
	assert.Equal(t, "abc", s.ID("abc"))
	assert.Equal(t, "Node", s.Kind("Node"))
	assert.Equal(t, "x", s.Faint("x"))
	assert.Equal(t, "boom", s.Error("boom"))
}
