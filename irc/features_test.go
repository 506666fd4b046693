package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeaturesIngest(t *testing.T) {
	f := newFeatures()
	assert.Equal(t, "rfc1459", f.CaseMappingName)
	assert.Equal(t, "#", f.ChanTypes)
	assert.Equal(t, "@+", f.MemberSymbols)

	changed := f.Ingest("PREFIX=(qaohv)~&@%+", "CHANTYPES=#&", "CHANMODES=beI,k,l,imnst", "NETWORK=Libera.Chat", "LINELEN=8191", "MONITOR=100", "WHOX")
	assert.False(t, changed)
	assert.Equal(t, "qaohv", f.MemberModes)
	assert.Equal(t, "~&@%+", f.MemberSymbols)
	assert.Equal(t, "#&", f.ChanTypes)
	assert.Equal(t, "beI", f.ChanModes[0])
	assert.Equal(t, "imnst", f.ChanModes[3])
	assert.Equal(t, "Libera.Chat", f.Network)
	assert.Equal(t, 8191, f.LineLen)
	assert.Equal(t, 100, f.MonitorLimit)
	assert.True(t, f.WhoX)

	changed = f.Ingest("CASEMAPPING=ascii")
	assert.True(t, changed)
	assert.Equal(t, "ascii", f.CaseMappingName)
	// same value again is not a change
	assert.False(t, f.Ingest("CASEMAPPING=ascii"))

	v, ok := f.Get("network")
	require.True(t, ok)
	assert.Equal(t, "Libera.Chat", v)

	f.Ingest("-NETWORK")
	_, ok = f.Get("network")
	assert.False(t, ok)
}

func TestSymbolOf(t *testing.T) {
	f := newFeatures()
	assert.Equal(t, byte('@'), f.SymbolOf('o'))
	assert.Equal(t, byte('+'), f.SymbolOf('v'))
	assert.Equal(t, byte(0), f.SymbolOf('x'))
}

func TestParseModes(t *testing.T) {
	chanmodes := [4]string{"beI", "k", "l", "imnst"}

	changes := ParseModes([]string{"+b", "*!*@example.com"}, &chanmodes, "ov")
	require.Len(t, changes, 1)
	assert.Equal(t, ModeChange{Plus: true, Mode: 'b', Param: "*!*@example.com"}, changes[0])

	changes = ParseModes([]string{"+kl-n", "secret", "42"}, &chanmodes, "ov")
	require.Len(t, changes, 3)
	assert.Equal(t, ModeChange{Plus: true, Mode: 'k', Param: "secret"}, changes[0])
	assert.Equal(t, ModeChange{Plus: true, Mode: 'l', Param: "42"}, changes[1])
	assert.Equal(t, ModeChange{Plus: false, Mode: 'n'}, changes[2])

	// -l takes no parameter
	changes = ParseModes([]string{"-l"}, &chanmodes, "ov")
	require.Len(t, changes, 1)
	assert.Equal(t, "", changes[0].Param)

	// member modes always take a nickname
	changes = ParseModes([]string{"+ov", "dan", "lily"}, &chanmodes, "ov")
	require.Len(t, changes, 2)
	assert.Equal(t, "dan", changes[0].Param)
	assert.Equal(t, "lily", changes[1].Param)

	// user modes never take parameters
	changes = ParseModes([]string{"+iw"}, nil, "")
	require.Len(t, changes, 2)
	assert.Equal(t, ModeChange{Plus: true, Mode: 'i'}, changes[0])
	assert.Equal(t, ModeChange{Plus: true, Mode: 'w'}, changes[1])

	assert.Nil(t, ParseModes(nil, &chanmodes, "ov"))
}
