package tabs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_StripsFragment(t *testing.T) {
	assert.Equal(t, "https://example.com/page", Key("https://example.com/page#frag"))
	assert.Equal(t, "https://example.com/page", Key("https://example.com/page"))
	assert.Equal(t, "https://example.com/page?q=1", Key("https://example.com/page?q=1#a#b"))
	assert.Equal(t, "", Key("#only"))
}

func TestKey_CollapsesFragmentViews(t *testing.T) {
	a := Tab{URL: "https://example.com/doc#section-1"}
	b := Tab{URL: "https://example.com/doc#section-2"}
	assert.Equal(t, a.Key(), b.Key())
}

func TestSchemeSet_Supports(t *testing.T) {
	s := SchemeSet(DefaultSchemes)

	assert.True(t, s.Supports("https://example.com"))
	assert.True(t, s.Supports("HTTP://example.com"))
	assert.False(t, s.Supports("about:blank"))
	assert.False(t, s.Supports("moz-extension://abc/options.html"))
	assert.False(t, s.Supports("file:///etc/hosts"))
	assert.False(t, s.Supports(""))
	assert.False(t, s.Supports("://bad"))
}

func TestTab_Exempt(t *testing.T) {
	assert.False(t, Tab{}.Exempt())
	assert.True(t, Tab{Incognito: true}.Exempt())
	assert.True(t, Tab{Pinned: true}.Exempt())
	assert.True(t, Tab{Audible: true}.Exempt())
}

func TestQuery_Matches(t *testing.T) {
	q := Query{Active: Bool(false), Audible: Bool(false), Pinned: Bool(false)}

	assert.True(t, q.Matches(Tab{}))
	assert.False(t, q.Matches(Tab{Active: true}))
	assert.False(t, q.Matches(Tab{Audible: true}))
	assert.False(t, q.Matches(Tab{Pinned: true}))
	assert.True(t, Query{}.Matches(Tab{Active: true, Pinned: true}))
}
