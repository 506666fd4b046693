package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColourNames(t *testing.T) {
	assert.Equal(t, "brown", ColourName(5))
	assert.Equal(t, "light grey", ColourName(15))
	assert.Equal(t, "unknown: 452", ColourName(452))

	code, err := ColourCode("brown")
	require.NoError(t, err)
	assert.Equal(t, 5, code)

	code, err = ColourCode("unknown: 99")
	require.NoError(t, err)
	assert.Equal(t, 99, code)

	_, err = ColourCode("bleen")
	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)
}

func TestEscape(t *testing.T) {
	cases := []struct{ wire, human string }{
		{"Strawberries are \x02cool\x0f", "Strawberries are $bcool$r"},
		{"Such \x1dcool\x1d things\x02!\x0f", "Such $icool$i things$b!$r"},
		{"Lol \x03cool \x032tests\x0f!", "Lol $c[]cool $c[blue]tests$r!"},
		{"Lol cool\x03", "Lol cool$c[]"},
		{"Lol \x034cool \x032,tests\x0f!", "Lol $c[red]cool $c[blue],tests$r!"},
		{"\x02Lol \x034,2cool \x033,8tests\x0f!", "$bLol $c[red,blue]cool $c[green,yellow]tests$r!"},
		{"1 dollar is $1", "1 dollar is $$1"},
		{"under\x1fline", "under$uline"},
	}
	for _, c := range cases {
		assert.Equal(t, c.human, Escape(c.wire))
	}
}

func TestUnescape(t *testing.T) {
	cases := []struct{ human, wire string }{
		{"Strawberries are $$cool$r", "Strawberries are $cool\x0f"},
		{"Strawberries are $bcool$r", "Strawberries are \x02cool\x0f"},
		{"Such $icool$i things$b!$r", "Such \x1dcool\x1d things\x02!\x0f"},
		{"How cool$c", "How cool\x03"},
		{"Lol $c[red]cool $c[blue]tests$r!", "Lol \x034cool \x032tests\x0f!"},
		{"$bLol $c[red,blue]cool $c[green,yellow]tests$r!", "\x02Lol \x034,2cool \x033,8tests\x0f!"},
		{"$c[]plain", "\x03plain"},
	}
	for _, c := range cases {
		wire, err := Unescape(c.human)
		require.NoError(t, err, c.human)
		assert.Equal(t, c.wire, wire)
	}
}

func TestUnescapeErrors(t *testing.T) {
	var ferr *FormatError

	_, err := Unescape("$c[bleen]text")
	require.ErrorAs(t, err, &ferr)

	_, err = Unescape("$c[red,bleen]text")
	require.ErrorAs(t, err, &ferr)

	_, err = Unescape("$c[red")
	require.ErrorAs(t, err, &ferr)

	_, err = Unescape("$x")
	require.ErrorAs(t, err, &ferr)
}

func TestFormatRoundTrip(t *testing.T) {
	// wire to human and back, for text using recognized codes
	wires := []string{
		"plain text",
		"\x02bold\x0f",
		"\x034,2coloured\x03 plain",
		"\x02\x1d\x1f\x0f",
		"money: $5",
		"\x0312,15deep\x03",
	}
	for _, wire := range wires {
		human := Escape(wire)
		back, err := Unescape(human)
		require.NoError(t, err, human)
		assert.Equal(t, wire, back)
	}

	// human to wire and back
	humans := []string{
		"hello $bworld$r",
		"$c[blue]sky$c[] ground",
		"escaped $$ dollar",
		"$c[red,blue]both$r",
	}
	for _, human := range humans {
		wire, err := Unescape(human)
		require.NoError(t, err, human)
		assert.Equal(t, human, Escape(wire))
	}
}
