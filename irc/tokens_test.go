package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(":dan!d@localhost PRIVMSG #chan :Hey what's up!")
	require.NoError(t, err)
	assert.Equal(t, "PRIVMSG", msg.Command)
	require.NotNil(t, msg.Prefix)
	assert.Equal(t, "dan", msg.Prefix.Name)
	assert.Equal(t, "d", msg.Prefix.User)
	assert.Equal(t, "localhost", msg.Prefix.Host)
	assert.Equal(t, []string{"#chan", "Hey what's up!"}, msg.Params)

	msg, err = ParseMessage("@time=2023-01-02T10:20:30.000Z;+draft/reply=123 :nick!u@h TAGMSG #chan")
	require.NoError(t, err)
	assert.Equal(t, "TAGMSG", msg.Command)
	assert.Equal(t, "2023-01-02T10:20:30.000Z", msg.Tags["time"])
	assert.Equal(t, "123", msg.Tags["+draft/reply"])

	msg, err = ParseMessage("PING")
	require.NoError(t, err)
	assert.Equal(t, "PING", msg.Command)
	assert.Empty(t, msg.Params)

	// the verb is folded to upper case
	msg, err = ParseMessage("privmsg nick hello")
	require.NoError(t, err)
	assert.Equal(t, "PRIVMSG", msg.Command)
}

func TestParseMessageErrors(t *testing.T) {
	for _, line := range []string{"", "   ", ":prefix.only", "@tag=1"} {
		_, err := ParseMessage(line)
		var perr *ParseError
		require.ErrorAs(t, err, &perr, "%q", line)
	}
}

func TestTagValueEscaping(t *testing.T) {
	msg, err := ParseMessage(`@msgid=x;text=hello\sworld\:\n! PRIVMSG #chan :hi`)
	require.NoError(t, err)
	assert.Equal(t, "hello world;\n!", msg.Tags["text"])

	// a lone trailing backslash is dropped
	msg, err = ParseMessage(`@k=v\ PING token`)
	require.NoError(t, err)
	assert.Equal(t, "v", msg.Tags["k"])
}

func TestMessageRoundTrip(t *testing.T) {
	lines := []string{
		":dan!d@localhost PRIVMSG #chan :Hey what's up!",
		"@time=2023-01-02T10:20:30.000Z :irc.example.org 001 nick :Welcome to the network",
		"JOIN #chan",
		"PART #chan :bye bye",
		"PRIVMSG #chan ::starts with colon",
		"PRIVMSG #chan :",
		"@text=a\\sb PRIVMSG nick :hello there",
		"MODE #chan +ov dan other",
	}
	for _, line := range lines {
		first, err := ParseMessage(line)
		require.NoError(t, err, line)
		second, err := ParseMessage(first.String())
		require.NoError(t, err, first.String())
		assert.Equal(t, first, second, line)
	}
}

func TestPrefixForms(t *testing.T) {
	p := ParsePrefix("nick")
	assert.Equal(t, &Prefix{Name: "nick"}, p)

	p = ParsePrefix("nick@host")
	assert.Equal(t, &Prefix{Name: "nick", Host: "host"}, p)

	p = ParsePrefix("nick!user@host")
	assert.Equal(t, "nick!user@host", p.String())

	assert.Nil(t, ParsePrefix(""))
}

func TestIsReply(t *testing.T) {
	assert.True(t, NewMessage("001").IsReply())
	assert.True(t, NewMessage("433").IsReply())
	assert.False(t, NewMessage("PING").IsReply())
	assert.False(t, NewMessage("01").IsReply())
	assert.False(t, NewMessage("0x1").IsReply())
}

func TestParam(t *testing.T) {
	msg := NewMessage("KICK", "#chan", "nick")
	assert.Equal(t, "#chan", msg.Param(0))
	assert.Equal(t, "nick", msg.Param(1))
	assert.Equal(t, "", msg.Param(2))
	assert.Equal(t, "", msg.Param(-1))
}
