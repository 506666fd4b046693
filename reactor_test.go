package kouhai

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~delthas/kouhai/irc"
)

func attach(r *Reactor, nick string) (chan string, chan irc.Message, *irc.Session) {
	in := make(chan string)
	out := make(chan irc.Message, 64)
	s := r.Attach(in, out, irc.SessionParams{Nickname: nick})
	return in, out, s
}

func TestGlobalHandlerAcrossSessions(t *testing.T) {
	r := NewReactor()

	var mu sync.Mutex
	pings := make(map[*irc.Session]int)
	r.RegisterHandler("ping", irc.In, func(ev *irc.Event) {
		mu.Lock()
		pings[ev.Session]++
		mu.Unlock()
	})

	in1, _, s1 := attach(r, "alice")
	in2, _, s2 := attach(r, "bob")
	assert.Len(t, r.Sessions(), 2)

	in1 <- ":irc.example.org 001 alice :Welcome"
	in1 <- "PING :1"
	in2 <- "PING :2"

	// handlers registered after the sessions exist still fire
	var late int
	r.RegisterHandler("ping", irc.In, func(ev *irc.Event) {
		if ev.Detail.(irc.PingEvent).Token != "3" {
			return
		}
		mu.Lock()
		late++
		mu.Unlock()
	})
	in1 <- "PING :3"

	close(in1)
	close(in2)
	require.Eventually(t, func() bool { return len(r.Sessions()) == 0 }, time.Second, time.Millisecond)
	r.Close("bye")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, pings[s1])
	assert.Equal(t, 1, pings[s2])
	assert.Equal(t, 1, late)
}

func TestReactorSessionLifecycle(t *testing.T) {
	r := NewReactor()

	var errs []error
	var mu sync.Mutex
	r.OnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	in, out, s := attach(r, "alice")
	in <- ":irc.example.org 001 alice :Welcome"
	in <- "@broken"
	// ERROR closes the session and ends its loop
	in <- "ERROR :Closing link"
	close(in)
	require.Eventually(t, func() bool { return len(r.Sessions()) == 0 }, time.Second, time.Millisecond)
	r.Close("bye")

	assert.True(t, s.Closed())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, errs)
	var perr *irc.ParseError
	assert.ErrorAs(t, errs[0], &perr)

	// the registration burst went out on the transport channel
	msgs := drainOut(out)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "CAP", msgs[0].Command)
}

func TestCloseWhileTransportOpen(t *testing.T) {
	r := NewReactor()
	in, out, s := attach(r, "alice")
	in <- ":irc.example.org 001 alice :Welcome"
	for i := 0; i < 5; i++ {
		in <- "PING :keepalive"
	}

	// shutdown is requested while the transport is still open; the
	// QUIT is sent from the session's own loop
	r.Close("bye")
	assert.True(t, s.Closed())
	assert.Empty(t, r.Sessions())

	// a transport that keeps writing after shutdown must not block
	select {
	case in <- "PING :late":
	case <-time.After(time.Second):
		t.Fatal("transport write blocked after close")
	}
	close(in)

	var quit bool
	for _, msg := range drainOut(out) {
		if msg.Command == "QUIT" {
			quit = true
			assert.Equal(t, "bye", msg.Param(0))
		}
	}
	assert.True(t, quit)
}

func drainOut(out chan irc.Message) []irc.Message {
	var msgs []irc.Message
	for {
		select {
		case msg := <-out:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}
