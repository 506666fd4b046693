package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCasemapFolding(t *testing.T) {
	cases := []struct {
		name     string
		casemap  CaseMapping
		in, want string
	}{
		{"ascii upper", CasemapASCII, "NickName", "nickname"},
		{"ascii specials untouched", CasemapASCII, "nick[]\\~", "nick[]\\~"},
		{"rfc1459 specials", CasemapRFC1459, "Nick[]\\~", "nick{}|^"},
		{"rfc1459 already lower", CasemapRFC1459, "nick{}|^", "nick{}|^"},
		{"strict keeps tilde", CasemapRFC1459Strict, "Nick[]\\~", "nick{}|~"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.casemap(c.in))
		})
	}
}

func TestCasemapIdempotent(t *testing.T) {
	inputs := []string{"NickName", "[]\\~{}|^", "#Chan~Nel", "ascii only", "déjà-vu"}
	for _, casemap := range []CaseMapping{CasemapASCII, CasemapRFC1459, CasemapRFC1459Strict} {
		for _, in := range inputs {
			once := casemap(in)
			assert.Equal(t, once, casemap(once))
		}
	}
}

func TestCasemapEq(t *testing.T) {
	assert.True(t, CaseMapping(CasemapRFC1459).Eq("Nick[1]", "nick{1}"))
	assert.False(t, CaseMapping(CasemapRFC1459Strict).Eq("nick~", "nick^"))
	assert.True(t, CaseMapping(CasemapRFC1459).Eq("nick~", "nick^"))
}

func TestCaseMappingByName(t *testing.T) {
	for _, name := range []string{"ascii", "rfc1459", "rfc1459-strict", "RFC1459"} {
		_, ok := CaseMappingByName(name)
		assert.True(t, ok, name)
	}
	_, ok := CaseMappingByName("utf8-only")
	assert.False(t, ok)
}

func TestCasemappedMap(t *testing.T) {
	m := NewCasemappedMap[int](CasemapRFC1459)
	m.Set("Nick[1]", 1)

	v, ok := m.Get("nick{1}")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// last inserted casing wins for retrieval
	m.Set("NICK{1}", 2)
	assert.Equal(t, 1, m.Len())
	key, ok := m.Key("nick[1]")
	require.True(t, ok)
	assert.Equal(t, "NICK{1}", key)

	m.Del("nick[1]")
	assert.False(t, m.Has("Nick{1}"))
}

func TestCasemappedMapRebuild(t *testing.T) {
	m := NewCasemappedMap[string](CasemapASCII)
	m.Set("nick[1]", "a")
	m.Set("nick{1}", "b")

	// distinct under ascii, colliding under rfc1459
	err := m.Rebuild(CasemapRFC1459)
	var scerr *SchemeChangeError
	require.ErrorAs(t, err, &scerr)

	// the failed rebuild must leave the old keys intact
	_, ok := m.Get("nick[1]")
	assert.True(t, ok)

	m.Del("nick{1}")
	require.NoError(t, m.Rebuild(CasemapRFC1459))
	v, ok := m.Get("NICK{1}")
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestCasemappedList(t *testing.T) {
	l := NewCasemappedList(CasemapRFC1459, "Alice", "Bob[1]")
	assert.True(t, l.Contains("alice"))
	assert.True(t, l.Contains("bob{1}"))

	// adding an equal item is a no-op
	l.Add("ALICE")
	assert.Equal(t, 2, l.Len())

	assert.True(t, l.Remove("bob{1}"))
	assert.False(t, l.Contains("Bob[1]"))
	assert.False(t, l.Remove("nope"))
}

func TestCasemappedString(t *testing.T) {
	s := NewCasemappedString(CasemapRFC1459, "Nick[1]")
	assert.Equal(t, "Nick[1]", s.String())
	assert.Equal(t, "nick{1}", s.Folded())
	assert.True(t, s.Eq("NICK{1}"))
	assert.False(t, s.Eq("other"))
}
