package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOrder(t *testing.T) {
	global := NewRegistry()
	out := make(chan Message, chanCapacity)
	s := NewSession(out, global, SessionParams{Nickname: "ayu"})
	drain(out)
	register(s)

	var order []string
	global.Register("join", In, func(ev *Event) { order = append(order, "global1") })
	global.Register("join", In, func(ev *Event) { order = append(order, "global2") })
	s.RegisterHandler("join", In, func(ev *Event) { order = append(order, "local1") })
	s.RegisterHandler("join", In, func(ev *Event) { order = append(order, "local2") })

	s.Receive(":dan!d@h JOIN #go")
	assert.Equal(t, []string{"global1", "global2", "local1", "local2"}, order)
}

func TestDispatchDirectionFilter(t *testing.T) {
	s, out := newTestSession(t, SessionParams{})
	register(s)
	s.Receive(":ayu!a@h JOIN #go")

	var in, outs, both int
	s.RegisterHandler("pubmsg", In, func(ev *Event) { in++ })
	s.RegisterHandler("pubmsg", Out, func(ev *Event) { outs++ })
	s.RegisterHandler("pubmsg", Both, func(ev *Event) { both++ })

	s.Receive(":dan!d@h PRIVMSG #go :hi")
	require.NoError(t, s.PrivMsg("#go", "hello"))
	drain(out)

	assert.Equal(t, 1, in)
	assert.Equal(t, 1, outs)
	assert.Equal(t, 2, both)
}

func TestDispatchWildcard(t *testing.T) {
	s, _ := newTestSession(t, SessionParams{})
	register(s)

	var names []string
	s.RegisterHandler(EventAny, In, func(ev *Event) { names = append(names, ev.Name) })

	s.Receive(":dan!d@h JOIN #go")
	assert.Equal(t, []string{EventRaw, "join"}, names)
}

func TestHandlerPanicIsolation(t *testing.T) {
	s, _ := newTestSession(t, SessionParams{})
	register(s)

	var errs []error
	s.OnError(func(err error) { errs = append(errs, err) })

	var reached bool
	s.RegisterHandler("join", In, func(ev *Event) { panic("boom") })
	s.RegisterHandler("join", In, func(ev *Event) { reached = true })

	s.Receive(":dan!d@h JOIN #go")

	assert.True(t, reached)
	require.NotEmpty(t, errs)
	var herr *HandlerError
	require.ErrorAs(t, errs[0], &herr)
	assert.Equal(t, "join", herr.Event)
	// state committed before the handler ran
	assert.NotNil(t, s.GetChannel("#go"))
}

func TestRetroactiveGlobalHandler(t *testing.T) {
	global := NewRegistry()
	out := make(chan Message, chanCapacity)
	s := NewSession(out, global, SessionParams{Nickname: "ayu"})
	drain(out)
	register(s)

	// registered after the session exists, still invoked
	var pings int
	global.Register("ping", In, func(ev *Event) { pings++ })
	s.Receive("PING :token")
	assert.Equal(t, 1, pings)
}
