// Package kouhai is a client-side IRC protocol engine: it parses the
// wire protocol, tracks per-connection state (users, channels,
// capabilities) under the server's casemapping, and maps lines onto
// typed events dispatched to handlers. Sockets, reconnection policy
// and user-facing command helpers are left to the caller.
package kouhai

import (
	"net"
	"sync"

	"git.sr.ht/~delthas/kouhai/irc"
)

// A Reactor owns sessions and the global handler scope. Handlers
// registered on the reactor apply to every open session and to all
// sessions created later; each session additionally has its own scoped
// handlers. Sessions process their traffic independently, one line at
// a time.
type Reactor struct {
	global *irc.Registry

	mu       sync.Mutex
	warn     func(error)
	sessions []*sessionHandle
	wg       sync.WaitGroup
}

// sessionHandle pairs a session with the quit signal of its run loop.
// Sessions are single-goroutine, so shutdown is requested through the
// loop rather than by calling into the session from outside.
type sessionHandle struct {
	session *irc.Session
	quit    chan string
}

func NewReactor() *Reactor {
	return &Reactor{
		global: irc.NewRegistry(),
		warn:   func(error) {},
	}
}

// OnError sets the collaborator receiving parse errors, consistency
// warnings and handler failures from every session.
func (r *Reactor) OnError(warn func(error)) {
	if warn == nil {
		return
	}
	r.mu.Lock()
	r.warn = warn
	r.mu.Unlock()
}

func (r *Reactor) report(err error) {
	r.mu.Lock()
	warn := r.warn
	r.mu.Unlock()
	warn(err)
}

// RegisterHandler adds a global handler. Registration is safe while
// other sessions are dispatching; the handler sees all matching events
// of open and future sessions from this point on.
func (r *Reactor) RegisterHandler(name string, dir irc.Direction, fn irc.HandlerFunc) {
	r.global.Register(name, dir, fn)
}

// Connect starts a session over conn and runs its inbound loop until
// the connection closes. The returned session must only be used from
// handlers or before any concurrent traffic, as sessions are not
// goroutine safe.
func (r *Reactor) Connect(conn net.Conn, params irc.SessionParams) *irc.Session {
	in, out := irc.ChanInOut(conn)
	return r.run(in, out, params)
}

// Attach is Connect for a transport the caller owns: in carries one
// complete inbound line per element, out receives outbound messages.
func (r *Reactor) Attach(in <-chan string, out chan<- irc.Message, params irc.SessionParams) *irc.Session {
	return r.run(in, out, params)
}

func (r *Reactor) run(in <-chan string, out chan<- irc.Message, params irc.SessionParams) *irc.Session {
	s := irc.NewSession(out, r.global, params)
	s.OnError(r.report)

	h := &sessionHandle{session: s, quit: make(chan string, 1)}
	r.mu.Lock()
	r.sessions = append(r.sessions, h)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
	loop:
		for {
			select {
			case line, ok := <-in:
				if !ok {
					break loop
				}
				s.Receive(line)
			case reason := <-h.quit:
				s.Quit(reason)
			}
			if s.Closed() {
				break
			}
		}
		s.Close()
		// a transport still writing lines must never block on a
		// session that stopped reading
		go func() {
			for range in {
			}
		}()
		r.mu.Lock()
		for i, open := range r.sessions {
			if open == h {
				r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
				break
			}
		}
		r.mu.Unlock()
	}()
	return s
}

// Sessions returns the open sessions.
func (r *Reactor) Sessions() []*irc.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*irc.Session, len(r.sessions))
	for i, h := range r.sessions {
		sessions[i] = h.session
	}
	return sessions
}

// Close asks every open session's run loop to send QUIT and waits for
// the loops to finish. The QUIT is sent from each session's own
// goroutine, so shutdown never touches a session concurrently with its
// traffic; once closed, a session's remaining input is drained and
// dropped.
func (r *Reactor) Close(reason string) {
	r.mu.Lock()
	handles := make([]*sessionHandle, len(r.sessions))
	copy(handles, r.sessions)
	r.mu.Unlock()
	for _, h := range handles {
		select {
		case h.quit <- reason:
		default:
		}
	}
	r.wg.Wait()
}
