package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/korolevna/gigabot/internal/config"
)

func TestEscapeTextHTML(t *testing.T) {
	got := EscapeText("a < b & c > d", config.ParseModeHTML)
	assert.Equal(t, "a &lt; b &amp; c &gt; d", got)
}

func TestEscapeTextMarkdown(t *testing.T) {
	got := EscapeText("раз*два_три[четыре]", config.ParseModeMarkdown)
	assert.Equal(t, `раз\*два\_три\[четыре\]`, got)
}

func TestAccessDefaults(t *testing.T) {
	a := NewAccess([]int64{1, 2}, nil)
	assert.True(t, a.IsAllowed(1))
	assert.False(t, a.IsAllowed(3))
	// Without an explicit admin list every allowed user is an admin.
	assert.True(t, a.IsAdmin(2))

	b := NewAccess([]int64{1, 2}, []int64{1})
	assert.True(t, b.IsAdmin(1))
	assert.False(t, b.IsAdmin(2))
}
