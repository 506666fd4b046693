package irc

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// A ConsistencyWarning reports a state mutation that referenced an
// entity we never tracked, such as a PART for an unknown channel. It is
// non-fatal: the event still dispatches with the information available.
type ConsistencyWarning struct {
	Op     string
	Entity string
}

func (e *ConsistencyWarning) Error() string {
	return fmt.Sprintf("%s references untracked %q", e.Op, e.Entity)
}

// A User is a nickname seen on the connection. The object is mutated in
// place as the server reports changes, so a reference stays valid
// across renames.
type User struct {
	Nick     string
	User     string
	Host     string
	Realname string
	Account  string
	Away     bool
	Me       bool

	channels map[*Channel]struct{}
}

// Mask returns the nick!user@host form of the user, with the parts we
// know about.
func (u *User) Mask() string {
	p := Prefix{Name: u.Nick, User: u.User, Host: u.Host}
	return p.String()
}

// NumChannels returns how many tracked channels the user shares with
// us.
func (u *User) NumChannels() int {
	return len(u.channels)
}

// A Channel tracks one channel's last known state. Joined is false for
// channels we only heard about or already left; a channel we left stays
// around, historic, until the dispatch of the departure event finishes.
type Channel struct {
	Name      string
	Topic     string
	TopicWho  string
	TopicTime time.Time
	Modes     map[byte]string
	Members   map[*User]string // member to prefix symbols, e.g. "@"
	Joined    bool

	complete bool // whether the NAMES burst finished
}

// Member returns the membership of nick in the channel, looked up
// through the session's casemapped user registry.
func (c *Channel) Member(s *Session, nick string) (u *User, prefixes string, ok bool) {
	u = s.GetUser(nick)
	if u == nil {
		return nil, "", false
	}
	prefixes, ok = c.Members[u]
	return u, prefixes, ok
}

// snapshot copies the channel with its membership, for handing to
// handlers of destructive events.
func (c *Channel) snapshot() *Channel {
	d := *c
	d.Members = make(map[*User]string, len(c.Members))
	for u, prefixes := range c.Members {
		d.Members[u] = prefixes
	}
	return &d
}

// SessionParams are the initial parameters of a Session, before the
// server has told us anything.
type SessionParams struct {
	Nickname string
	Username string
	RealName string
	Password string

	// WantedCaps are requested from the server when advertised, on
	// top of the capabilities the session always wants.
	WantedCaps []string

	// CaseMapping names the folding scheme assumed until ISUPPORT
	// says otherwise. Empty means rfc1459.
	CaseMapping string
}

// capabilities the session always requests when available.
var defaultCaps = []string{
	"away-notify", "cap-notify", "chghost", "echo-message",
	"extended-join", "message-tags", "multi-prefix", "server-time",
}

// A Session is the engine for one connection: it parses inbound lines,
// tracks users, channels and capabilities, maps lines to events and
// dispatches them. All methods must be called from a single goroutine;
// distinct sessions are independent.
type Session struct {
	out chan<- Message

	nick       string
	username   string
	realname   string
	registered bool
	closed     bool

	casemap  CaseMapping
	users    *CasemappedMap[*User]
	channels *CasemappedMap[*Channel]
	features Features

	availableCaps map[string]string
	enabledCaps   map[string]struct{}
	wantedCaps    map[string]struct{}
	requestedCaps map[string]struct{}

	local  *Registry
	global *Registry
	warn   func(error)

	pruneChannels []*Channel
	pruneUsers    []*User
}

// NewSession starts the registration handshake on out and returns the
// session. global carries reactor-level handlers and may be nil.
func NewSession(out chan<- Message, global *Registry, params SessionParams) *Session {
	casemap := CasemapRFC1459
	casemapName := "rfc1459"
	if params.CaseMapping != "" {
		if cm, ok := CaseMappingByName(params.CaseMapping); ok {
			casemap = cm
			casemapName = strings.ToLower(params.CaseMapping)
		}
	}
	s := &Session{
		out:           out,
		nick:          params.Nickname,
		username:      params.Username,
		realname:      params.RealName,
		casemap:       casemap,
		users:         NewCasemappedMap[*User](casemap),
		channels:      NewCasemappedMap[*Channel](casemap),
		features:      newFeatures(),
		availableCaps: make(map[string]string),
		enabledCaps:   make(map[string]struct{}),
		wantedCaps:    make(map[string]struct{}),
		requestedCaps: make(map[string]struct{}),
		local:         NewRegistry(),
		global:        global,
		warn:          func(error) {},
	}
	if s.username == "" {
		s.username = s.nick
	}
	if s.realname == "" {
		s.realname = s.nick
	}
	s.features.CaseMappingName = casemapName
	for _, c := range defaultCaps {
		s.wantedCaps[strings.ToLower(c)] = struct{}{}
	}
	for _, c := range params.WantedCaps {
		s.wantedCaps[strings.ToLower(c)] = struct{}{}
	}

	s.out <- NewMessage("CAP", "LS", "302")
	if params.Password != "" {
		s.out <- NewMessage("PASS", params.Password)
	}
	s.out <- NewMessage("NICK", s.nick)
	s.out <- NewMessage("USER", s.username, "0", "*", s.realname)

	return s
}

// OnError sets the collaborator receiving ParseError,
// ConsistencyWarning, HandlerError and SchemeChangeError values.
func (s *Session) OnError(warn func(error)) {
	if warn != nil {
		s.warn = warn
	}
}

// RegisterHandler adds a connection-scoped handler, invoked after the
// global ones, in registration order.
func (s *Session) RegisterHandler(name string, dir Direction, fn HandlerFunc) {
	s.local.Register(name, dir, fn)
}

func (s *Session) Nick() string        { return s.nick }
func (s *Session) Registered() bool    { return s.registered }
func (s *Session) Closed() bool        { return s.closed }
func (s *Session) Features() *Features { return &s.features }

// Casemap folds name under the session's negotiated casemapping.
func (s *Session) Casemap(name string) string {
	return s.casemap(name)
}

// IsMe reports whether nick denotes the local identity under the
// session casemapping.
func (s *Session) IsMe(nick string) bool {
	return s.casemap.Eq(nick, s.nick)
}

// IsChannel reports whether name starts with one of the server's
// channel type prefixes.
func (s *Session) IsChannel(name string) bool {
	return name != "" && strings.IndexByte(s.features.ChanTypes, name[0]) >= 0
}

// GetUser returns the tracked user for nick, or nil. It never creates
// entities: only inbound traffic does.
func (s *Session) GetUser(nick string) *User {
	u, _ := s.users.Get(nick)
	return u
}

// GetChannel returns the tracked channel for name, or nil.
func (s *Session) GetChannel(name string) *Channel {
	c, _ := s.channels.Get(name)
	return c
}

// CapEnabled reports whether a capability was acknowledged by the
// server.
func (s *Session) CapEnabled(name string) bool {
	_, ok := s.enabledCaps[strings.ToLower(name)]
	return ok
}

// Close marks the session closed. No further lines are processed or
// sent; in-flight dispatch finishes normally.
func (s *Session) Close() {
	s.closed = true
}

// Receive runs one inbound wire line through the whole engine: parse,
// state update, then dispatch. Lines that fail to parse still dispatch
// a raw event.
func (s *Session) Receive(line string) {
	if s.closed {
		return
	}
	msg, err := ParseMessage(line)
	raw := Event{
		Session:   s,
		Direction: In,
		Name:      EventRaw,
		Time:      msg.TimestampOrNow(),
		Raw:       msg,
		Detail:    RawEvent{Line: line},
	}
	if err != nil {
		perr := err.(*ParseError)
		raw.Detail = RawEvent{Line: line, Err: perr}
		s.dispatch(raw)
		s.warn(perr)
		return
	}
	s.dispatch(raw)

	events, err := s.HandleMessage(msg, In)
	if err != nil {
		s.warn(err)
	}
	for _, ev := range events {
		s.dispatch(ev)
	}
	s.prune()
}

// prune drops historic objects once the dispatch that made them
// historic has completed.
func (s *Session) prune() {
	for _, c := range s.pruneChannels {
		if cur, ok := s.channels.Get(c.Name); ok && cur == c && !cur.Joined {
			s.channels.Del(c.Name)
			for u := range c.Members {
				delete(u.channels, c)
				s.cleanUser(u)
			}
		}
	}
	s.pruneChannels = s.pruneChannels[:0]
	for _, u := range s.pruneUsers {
		s.cleanUser(u)
	}
	s.pruneUsers = s.pruneUsers[:0]
}

func (s *Session) dispatch(ev Event) {
	if s.global != nil {
		s.global.dispatch(&ev, s.warn)
	}
	s.local.dispatch(&ev, s.warn)
}

func (s *Session) newEvent(msg Message, dir Direction, name string, detail any) Event {
	return Event{
		Session:   s,
		Direction: dir,
		Name:      name,
		Time:      msg.TimestampOrNow(),
		Raw:       msg,
		Detail:    detail,
	}
}

// userFromPrefix returns the tracked user for a message source,
// creating it on first reference. A nil result means the source is
// absent or the server itself.
func (s *Session) userFromPrefix(p *Prefix) *User {
	if p == nil || p.Name == "" {
		return nil
	}
	if p.User == "" && p.Host == "" && strings.ContainsRune(p.Name, '.') {
		return nil
	}
	u := s.createUser(p.Name)
	if p.User != "" {
		u.User = p.User
	}
	if p.Host != "" {
		u.Host = p.Host
	}
	return u
}

func (s *Session) createUser(nick string) *User {
	if u, ok := s.users.Get(nick); ok {
		return u
	}
	u := &User{
		Nick:     nick,
		Me:       s.IsMe(nick),
		channels: make(map[*Channel]struct{}),
	}
	s.users.Set(nick, u)
	return u
}

func (s *Session) createChannel(name string) *Channel {
	if c, ok := s.channels.Get(name); ok {
		return c
	}
	c := &Channel{
		Name:    name,
		Modes:   make(map[byte]string),
		Members: make(map[*User]string),
	}
	s.channels.Set(name, c)
	return c
}

// cleanUser forgets a user that shares no channel with us anymore.
func (s *Session) cleanUser(parted *User) {
	if parted == nil || parted.Me || len(parted.channels) != 0 {
		return
	}
	s.users.Del(parted.Nick)
}

func (s *Session) attach(c *Channel, u *User, prefixes string) {
	c.Members[u] = prefixes
	u.channels[c] = struct{}{}
}

func (s *Session) detach(c *Channel, u *User) {
	delete(c.Members, u)
	delete(u.channels, c)
}

// setCasemap switches the session to a new folding scheme, rebuilding
// every folded container. A collision makes the change invalid and is
// fatal to the session.
func (s *Session) setCasemap(casemap CaseMapping) error {
	if err := s.users.Rebuild(casemap); err != nil {
		return err
	}
	if err := s.channels.Rebuild(casemap); err != nil {
		return err
	}
	s.casemap = casemap
	return nil
}

// HandleMessage maps one parsed message onto events, applying state
// mutations first so that handlers observe the world as of the event.
// Destructive events carry pre-mutation snapshots. Outbound messages
// never mutate state: the server's echo is authoritative for
// self-initiated actions.
func (s *Session) HandleMessage(msg Message, dir Direction) ([]Event, error) {
	if dir == Out {
		return s.mapOutbound(msg), nil
	}

	switch msg.Command {
	case "PING":
		s.send(NewMessage("PONG", msg.Param(0)))
		return []Event{s.newEvent(msg, dir, "ping", PingEvent{Token: msg.Param(0)})}, nil
	case "PONG":
		return []Event{s.newEvent(msg, dir, "pong", PongEvent{Token: msg.Param(1)})}, nil
	case "CAP":
		return s.handleCap(msg)
	case "ERROR":
		s.closed = true
		return []Event{s.newEvent(msg, dir, "error", ErrorEvent{
			Severity: SeverityFail,
			Code:     "ERROR",
			Message:  msg.Param(0),
		})}, nil
	case rplWelcome:
		s.registered = true
		// some servers silently truncate the nickname we asked for
		if msg.Param(0) != "" {
			s.nick = msg.Param(0)
		}
		me := s.createUser(s.nick)
		me.Me = true
		return []Event{s.newEvent(msg, dir, "welcome", RegisteredEvent{Nick: s.nick})}, nil
	case rplIsupport:
		if err := msg.assertNParams(2); err != nil {
			return nil, err
		}
		tokens := msg.Params[1 : len(msg.Params)-1]
		changed := s.features.Ingest(tokens...)
		if changed {
			if cm, ok := CaseMappingByName(s.features.CaseMappingName); ok {
				if err := s.setCasemap(cm); err != nil {
					s.closed = true
					return nil, err
				}
			}
		}
		return []Event{s.newEvent(msg, dir, "features", FeaturesEvent{Features: &s.features})}, nil
	case "JOIN":
		return s.handleJoin(msg)
	case "PART":
		return s.handlePart(msg)
	case "KICK":
		return s.handleKick(msg)
	case "QUIT":
		return s.handleQuit(msg)
	case "NICK":
		return s.handleNick(msg)
	case "TOPIC":
		if err := msg.assertNParams(2); err != nil {
			return nil, err
		}
		by := s.userFromPrefix(msg.Prefix)
		c := s.createChannel(msg.Param(0))
		c.Topic = msg.Param(1)
		if by != nil {
			c.TopicWho = by.Nick
		}
		c.TopicTime = msg.TimestampOrNow()
		return []Event{s.newEvent(msg, dir, "topic", TopicEvent{Channel: c, Topic: c.Topic, By: by})}, nil
	case rplTopic:
		if err := msg.assertNParams(3); err != nil {
			return nil, err
		}
		c := s.createChannel(msg.Param(1))
		c.Topic = msg.Param(2)
		return []Event{s.newEvent(msg, dir, "topic", TopicEvent{Channel: c, Topic: c.Topic})}, nil
	case rplNotopic:
		if err := msg.assertNParams(2); err != nil {
			return nil, err
		}
		c := s.createChannel(msg.Param(1))
		c.Topic = ""
		return []Event{s.newEvent(msg, dir, "notopic", TopicEvent{Channel: c})}, nil
	case rplTopicwhotime:
		if err := msg.assertNParams(4); err != nil {
			return nil, err
		}
		c := s.createChannel(msg.Param(1))
		c.TopicWho = ParsePrefix(msg.Param(2)).Name
		if t, err := parseUnix(msg.Param(3)); err == nil {
			c.TopicTime = t
		}
		return []Event{s.newEvent(msg, dir, "topicwhotime", TopicEvent{Channel: c, Topic: c.Topic})}, nil
	case "MODE":
		return s.handleMode(msg)
	case rplChannelmodeis:
		if err := msg.assertNParams(3); err != nil {
			return nil, err
		}
		c := s.createChannel(msg.Param(1))
		return s.applyChannelModes(msg, c, msg.Params[2:], nil, "cmodeis"), nil
	case rplNamreply:
		return s.handleNamreply(msg)
	case rplEndofnames:
		if err := msg.assertNParams(2); err != nil {
			return nil, err
		}
		c := s.GetChannel(msg.Param(1))
		if c == nil {
			return nil, &ConsistencyWarning{Op: "end of NAMES", Entity: msg.Param(1)}
		}
		c.complete = true
		return []Event{s.newEvent(msg, dir, "endofnames", NamesEvent{Channel: c})}, nil
	case "AWAY":
		u := s.userFromPrefix(msg.Prefix)
		if u == nil {
			return nil, nil
		}
		u.Away = len(msg.Params) > 0
		return []Event{s.newEvent(msg, dir, "away", AwayEvent{User: u, Away: u.Away})}, nil
	case rplAway:
		if err := msg.assertNParams(2); err != nil {
			return nil, err
		}
		if u := s.GetUser(msg.Param(1)); u != nil {
			u.Away = true
		}
		return []Event{s.newEvent(msg, dir, "away", InfoEvent{Code: msg.Command, Message: Escape(msg.Param(2))})}, nil
	case "CHGHOST":
		if err := msg.assertNParams(2); err != nil {
			return nil, err
		}
		u := s.userFromPrefix(msg.Prefix)
		if u == nil {
			return nil, &ConsistencyWarning{Op: "CHGHOST", Entity: msg.Prefix.String()}
		}
		ev := ChghostEvent{
			User:    u,
			OldUser: u.User,
			OldHost: u.Host,
			NewUser: msg.Param(0),
			NewHost: msg.Param(1),
		}
		u.User = ev.NewUser
		u.Host = ev.NewHost
		return []Event{s.newEvent(msg, dir, "chghost", ev)}, nil
	case "SETNAME":
		if u := s.userFromPrefix(msg.Prefix); u != nil {
			u.Realname = msg.Param(0)
		}
		return nil, nil
	case "ACCOUNT":
		if u := s.userFromPrefix(msg.Prefix); u != nil {
			if account := msg.Param(0); account != "*" {
				u.Account = account
			} else {
				u.Account = ""
			}
		}
		return nil, nil
	case "INVITE":
		if err := msg.assertNParams(2); err != nil {
			return nil, err
		}
		by := s.userFromPrefix(msg.Prefix)
		u := s.createUser(msg.Param(0))
		c := s.createChannel(msg.Param(1))
		return []Event{s.newEvent(msg, dir, "invite", InviteEvent{Channel: c, User: u, By: by})}, nil
	case "PRIVMSG", "NOTICE":
		return s.handleChat(msg, In)
	default:
		if msg.IsReply() {
			return s.handleNumeric(msg)
		}
		return nil, nil
	}
}

func parseUnix(s string) (time.Time, error) {
	var unix int64
	if _, err := fmt.Sscanf(s, "%d", &unix); err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}

func (s *Session) handleCap(msg Message) ([]Event, error) {
	if err := msg.assertNParams(2); err != nil {
		return nil, err
	}
	sub := strings.ToUpper(msg.Param(1))
	var events []Event
	switch sub {
	case "LS", "NEW":
		more := false
		list := msg.Param(2)
		if sub == "LS" && msg.Param(2) == "*" {
			more = true
			list = msg.Param(3)
		}
		caps := make(map[string]string)
		for _, token := range strings.Fields(list) {
			token = strings.TrimLeft(token, "=~")
			name, value, _ := strings.Cut(token, "=")
			name = strings.ToLower(name)
			caps[name] = value
			s.availableCaps[name] = value
		}
		events = append(events, s.newEvent(msg, In, "cap", CapEvent{Subcommand: strings.ToLower(sub), Caps: caps, More: more}))
		if !more {
			var request []string
			for name := range s.availableCaps {
				if _, ok := s.wantedCaps[name]; !ok {
					continue
				}
				if _, ok := s.enabledCaps[name]; ok {
					continue
				}
				if _, ok := s.requestedCaps[name]; ok {
					continue
				}
				request = append(request, name)
			}
			if len(request) > 0 {
				sort.Strings(request)
				for _, name := range request {
					s.requestedCaps[name] = struct{}{}
				}
				s.send(NewMessage("CAP", "REQ", strings.Join(request, " ")))
			} else if sub == "LS" && !s.registered {
				s.send(NewMessage("CAP", "END"))
			}
		}
	case "ACK", "NAK":
		caps := make(map[string]string)
		for _, name := range strings.Fields(msg.Param(2)) {
			disable := strings.HasPrefix(name, "-")
			name = strings.ToLower(strings.TrimPrefix(name, "-"))
			caps[name] = s.availableCaps[name]
			delete(s.requestedCaps, name)
			if sub == "ACK" && !disable {
				s.enabledCaps[name] = struct{}{}
				if name == "labeled-response" {
					EnableLabels(s.out)
				}
			} else {
				delete(s.enabledCaps, name)
				if name == "labeled-response" {
					DisableLabels(s.out)
				}
			}
		}
		events = append(events, s.newEvent(msg, In, "cap", CapEvent{Subcommand: strings.ToLower(sub), Caps: caps}))
		if !s.registered {
			s.send(NewMessage("CAP", "END"))
		}
	case "DEL":
		caps := make(map[string]string)
		for _, name := range strings.Fields(msg.Param(2)) {
			name = strings.ToLower(name)
			caps[name] = s.availableCaps[name]
			delete(s.availableCaps, name)
			delete(s.enabledCaps, name)
			delete(s.requestedCaps, name)
		}
		events = append(events, s.newEvent(msg, In, "cap", CapEvent{Subcommand: "del", Caps: caps}))
	}
	return events, nil
}

func (s *Session) handleJoin(msg Message) ([]Event, error) {
	if err := msg.assertNParams(1); err != nil {
		return nil, err
	}
	u := s.userFromPrefix(msg.Prefix)
	if u == nil {
		return nil, &ConsistencyWarning{Op: "JOIN", Entity: msg.Prefix.String()}
	}
	// extended-join carries the account and realname
	if len(msg.Params) >= 3 {
		if account := msg.Param(1); account != "*" {
			u.Account = account
		}
		u.Realname = msg.Param(2)
	}
	var events []Event
	for _, name := range strings.Split(msg.Param(0), ",") {
		c := s.createChannel(name)
		if u.Me {
			c.Joined = true
			c.complete = false
		}
		s.attach(c, u, "")
		events = append(events, s.newEvent(msg, In, "join", JoinEvent{Channel: c, User: u}))
	}
	return events, nil
}

func (s *Session) handlePart(msg Message) ([]Event, error) {
	if err := msg.assertNParams(1); err != nil {
		return nil, err
	}
	u := s.userFromPrefix(msg.Prefix)
	reason := Escape(msg.Param(1))
	var events []Event
	var warn error
	for _, name := range strings.Split(msg.Param(0), ",") {
		c := s.GetChannel(name)
		if c == nil || u == nil {
			warn = &ConsistencyWarning{Op: "PART", Entity: name}
			events = append(events, s.newEvent(msg, In, "part", PartEvent{Channel: c, User: u, Reason: reason}))
			continue
		}
		if u.Me {
			c.Joined = false
		}
		snap := c.snapshot()
		if u.Me {
			s.pruneChannels = append(s.pruneChannels, c)
		} else {
			s.detach(c, u)
			s.pruneUsers = append(s.pruneUsers, u)
		}
		events = append(events, s.newEvent(msg, In, "part", PartEvent{Channel: snap, User: u, Reason: reason}))
	}
	return events, warn
}

func (s *Session) handleKick(msg Message) ([]Event, error) {
	if err := msg.assertNParams(2); err != nil {
		return nil, err
	}
	by := s.userFromPrefix(msg.Prefix)
	c := s.GetChannel(msg.Param(0))
	u := s.GetUser(msg.Param(1))
	reason := Escape(msg.Param(2))
	if c == nil || u == nil {
		ev := s.newEvent(msg, In, "kick", KickEvent{Channel: c, User: u, By: by, Reason: reason})
		return []Event{ev}, &ConsistencyWarning{Op: "KICK", Entity: msg.Param(0) + " " + msg.Param(1)}
	}
	if u.Me {
		c.Joined = false
	}
	snap := c.snapshot()
	if u.Me {
		s.pruneChannels = append(s.pruneChannels, c)
	} else {
		s.detach(c, u)
		s.pruneUsers = append(s.pruneUsers, u)
	}
	return []Event{s.newEvent(msg, In, "kick", KickEvent{Channel: snap, User: u, By: by, Reason: reason})}, nil
}

func (s *Session) handleQuit(msg Message) ([]Event, error) {
	u := s.userFromPrefix(msg.Prefix)
	if u == nil {
		return nil, &ConsistencyWarning{Op: "QUIT", Entity: msg.Prefix.String()}
	}
	var channels []*Channel
	for c := range u.channels {
		channels = append(channels, c.snapshot())
		s.detach(c, u)
	}
	s.pruneUsers = append(s.pruneUsers, u)
	ev := QuitEvent{User: u, Channels: channels, Reason: Escape(msg.Param(0))}
	return []Event{s.newEvent(msg, In, "quit", ev)}, nil
}

func (s *Session) handleNick(msg Message) ([]Event, error) {
	if err := msg.assertNParams(1); err != nil {
		return nil, err
	}
	newNick := msg.Param(0)
	var u *User
	var warn error
	if msg.Prefix != nil {
		u = s.GetUser(msg.Prefix.Name)
	}
	if u == nil {
		warn = &ConsistencyWarning{Op: "NICK", Entity: msg.Prefix.String()}
		u = s.userFromPrefix(msg.Prefix)
		if u == nil {
			return nil, warn
		}
	}
	old := u.Nick
	// rename in place: the object stays the same, only its key in the
	// user registry changes
	s.users.Del(old)
	u.Nick = newNick
	s.users.Set(newNick, u)
	if u.Me {
		s.nick = newNick
	}
	ev := NickEvent{User: u, OldNick: old, NewNick: newNick}
	return []Event{s.newEvent(msg, In, "nick", ev)}, warn
}

func (s *Session) handleMode(msg Message) ([]Event, error) {
	if err := msg.assertNParams(2); err != nil {
		return nil, err
	}
	target := msg.Param(0)
	by := s.userFromPrefix(msg.Prefix)
	if !s.IsChannel(target) {
		var events []Event
		for _, mc := range ParseModes(msg.Params[1:], nil, "") {
			events = append(events, s.newEvent(msg, In, "umode", ModeEvent{
				Target: target, By: by, Plus: mc.Plus, Mode: mc.Mode, Param: mc.Param,
			}))
		}
		return events, nil
	}
	c := s.GetChannel(target)
	if c == nil {
		return nil, &ConsistencyWarning{Op: "MODE", Entity: target}
	}
	return s.applyChannelModes(msg, c, msg.Params[1:], by, "cmode"), nil
}

// applyChannelModes mutates the channel for each discrete mode change
// and produces one event per change.
func (s *Session) applyChannelModes(msg Message, c *Channel, params []string, by *User, name string) []Event {
	var events []Event
	for _, mc := range ParseModes(params, &s.features.ChanModes, s.features.MemberModes) {
		if strings.IndexByte(s.features.MemberModes, mc.Mode) >= 0 {
			if u := s.GetUser(mc.Param); u != nil {
				if _, ok := c.Members[u]; ok {
					symbol := s.features.SymbolOf(mc.Mode)
					c.Members[u] = updatePrefixes(c.Members[u], symbol, mc.Plus, s.features.MemberSymbols)
				}
			}
		} else if mc.Plus {
			c.Modes[mc.Mode] = mc.Param
		} else {
			delete(c.Modes, mc.Mode)
		}
		events = append(events, s.newEvent(msg, In, name, ModeEvent{
			Channel: c, Target: c.Name, By: by, Plus: mc.Plus, Mode: mc.Mode, Param: mc.Param,
		}))
	}
	return events
}

// updatePrefixes adds or removes one prefix symbol, keeping the symbols
// in the rank order the server declares.
func updatePrefixes(prefixes string, symbol byte, add bool, order string) string {
	var sb strings.Builder
	for i := 0; i < len(order); i++ {
		has := strings.IndexByte(prefixes, order[i]) >= 0
		if order[i] == symbol {
			has = add
		}
		if has {
			sb.WriteByte(order[i])
		}
	}
	return sb.String()
}

func (s *Session) handleNamreply(msg Message) ([]Event, error) {
	if err := msg.assertNParams(3); err != nil {
		return nil, err
	}
	c := s.createChannel(msg.Param(2))
	if c.Joined && c.complete {
		// a fresh burst replaces the old membership
		for u := range c.Members {
			s.detach(c, u)
			s.cleanUser(u)
		}
		c.complete = false
	}
	for _, name := range strings.Fields(msg.Param(3)) {
		prefixes := ""
		for len(name) > 0 && strings.IndexByte(s.features.MemberSymbols, name[0]) >= 0 {
			prefixes += string(name[0])
			name = name[1:]
		}
		if name == "" {
			continue
		}
		p := ParsePrefix(name) // userhost-in-names sends full masks
		u := s.createUser(p.Name)
		if p.User != "" {
			u.User = p.User
		}
		if p.Host != "" {
			u.Host = p.Host
		}
		s.attach(c, u, prefixes)
	}
	return []Event{s.newEvent(msg, In, "namreply", NamesEvent{Channel: c})}, nil
}

// handleChat deals with PRIVMSG and NOTICE in both directions: verb
// refinement to the private/public forms, then CTCP unpacking.
func (s *Session) handleChat(msg Message, dir Direction) ([]Event, error) {
	if err := msg.assertNParams(2); err != nil {
		return nil, err
	}
	var from *User
	if dir == In {
		from = s.userFromPrefix(msg.Prefix)
	} else {
		from = s.GetUser(s.nick)
	}
	target := msg.Param(0)
	var channel *Channel
	public := s.IsChannel(target)
	name := "privmsg"
	if public {
		// only inbound traffic creates entities on reference
		if dir == In {
			channel = s.createChannel(target)
		} else {
			channel = s.GetChannel(target)
		}
		name = "pubmsg"
	}
	if msg.Command == "NOTICE" {
		if public {
			name = "pubnotice"
		} else {
			name = "privnotice"
		}
	}

	text := msg.Param(1)
	if !strings.ContainsRune(text, 0x01) {
		return []Event{s.newEvent(msg, dir, name, MessageEvent{
			From: from, Target: target, Channel: channel, Text: text,
		})}, nil
	}

	// CTCP: odd \x01-delimited chunks are tagged data, even chunks
	// plain text
	var events []Event
	for i, chunk := range strings.Split(text, "\x01") {
		if i%2 == 0 {
			if chunk == "" {
				continue
			}
			events = append(events, s.newEvent(msg, dir, name, MessageEvent{
				From: from, Target: target, Channel: channel, Text: chunk,
			}))
			continue
		}
		verb, ctext, _ := strings.Cut(strings.TrimLeft(chunk, " "), " ")
		verb = strings.ToLower(verb)
		ctcpName := "ctcp"
		if msg.Command == "NOTICE" {
			ctcpName = "ctcp_reply"
		}
		ev := CTCPEvent{From: from, Target: target, Channel: channel, CtcpVerb: verb, CtcpText: ctext}
		events = append(events, s.newEvent(msg, dir, ctcpName, ev))
		if ctcpName == "ctcp" && verb == "action" {
			events = append(events, s.newEvent(msg, dir, "action", ev))
		}
	}
	return events, nil
}

// handleNumeric is the generic path for numerics without dedicated
// handling: name from the table, attributes per its declared rules,
// info or error payload by numeric class.
func (s *Session) handleNumeric(msg Message) ([]Event, error) {
	name := EventName(msg.Command)
	attrs := ExtractParams(name, msg)
	message, ok := attrs["message"]
	if !ok {
		// params[0] is our nick on numerics, skip it
		if len(msg.Params) > 1 {
			message = Escape(strings.Join(msg.Params[1:], " "))
		}
	}
	var detail any
	if msg.Command[0] == '4' || msg.Command[0] == '5' {
		detail = ErrorEvent{Severity: severityOf(msg.Command), Code: msg.Command, Message: message}
	} else {
		detail = InfoEvent{Code: msg.Command, Message: message}
	}
	return []Event{s.newEvent(msg, In, name, detail)}, nil
}

func severityOf(code string) Severity {
	switch code {
	case errNicknameinuse, errNomotd:
		return SeverityNote
	case errUnknowncommand, errMonlistisfull:
		return SeverityWarn
	default:
		return SeverityFail
	}
}

// mapOutbound builds the direction=out events for a line we are about
// to send. State is untouched: every state-bearing verb is echoed by
// the server and applied on receipt.
func (s *Session) mapOutbound(msg Message) []Event {
	switch msg.Command {
	case "PRIVMSG", "NOTICE":
		events, _ := s.handleChat(msg, Out)
		return events
	case "PING":
		return []Event{s.newEvent(msg, Out, "ping", PingEvent{Token: msg.Param(0)})}
	case "JOIN", "PART", "KICK", "QUIT", "NICK", "TOPIC", "MODE", "INVITE", "AWAY":
		return []Event{s.newEvent(msg, Out, strings.ToLower(msg.Command), nil)}
	default:
		return nil
	}
}

// send writes one message to the transport and dispatches its raw and
// outbound events.
func (s *Session) send(msg Message) {
	if s.closed {
		return
	}
	s.out <- msg
	s.dispatch(Event{
		Session:   s,
		Direction: Out,
		Name:      EventRaw,
		Time:      time.Now().UTC(),
		Raw:       msg,
		Detail:    RawEvent{Line: msg.String()},
	})
	for _, ev := range s.mapOutbound(msg) {
		s.dispatch(ev)
	}
}

// SendRaw sends a caller-built line as is.
func (s *Session) SendRaw(line string) {
	msg, err := ParseMessage(line)
	if err != nil {
		s.warn(err)
		return
	}
	s.send(msg)
}

func (s *Session) Join(channel, key string) {
	if key == "" {
		s.send(NewMessage("JOIN", channel))
	} else {
		s.send(NewMessage("JOIN", channel, key))
	}
}

func (s *Session) Part(channel, reason string) {
	if reason == "" {
		s.send(NewMessage("PART", channel))
	} else {
		s.send(NewMessage("PART", channel, reason))
	}
}

func (s *Session) Kick(channel, nick, reason string) {
	if reason == "" {
		s.send(NewMessage("KICK", channel, nick))
	} else {
		s.send(NewMessage("KICK", channel, nick, reason))
	}
}

func (s *Session) Invite(nick, channel string) {
	s.send(NewMessage("INVITE", nick, channel))
}

func (s *Session) Quit(reason string) {
	s.send(NewMessage("QUIT", reason))
	s.closed = true
}

func (s *Session) ChangeNick(nick string) {
	s.send(NewMessage("NICK", nick))
}

// PrivMsg sends human-formatted text to a target, unescaping it to
// wire formatting. A bad formatting token fails the call.
func (s *Session) PrivMsg(target, text string) error {
	wire, err := Unescape(text)
	if err != nil {
		return err
	}
	s.send(NewMessage("PRIVMSG", target, wire))
	return nil
}

func (s *Session) Notice(target, text string) error {
	wire, err := Unescape(text)
	if err != nil {
		return err
	}
	s.send(NewMessage("NOTICE", target, wire))
	return nil
}

func (s *Session) CTCP(target, verb, text string) {
	body := strings.ToUpper(verb)
	if text != "" {
		body += " " + text
	}
	s.send(NewMessage("PRIVMSG", target, "\x01"+body+"\x01"))
}

func (s *Session) CTCPReply(target, verb, text string) {
	body := strings.ToUpper(verb)
	if text != "" {
		body += " " + text
	}
	s.send(NewMessage("NOTICE", target, "\x01"+body+"\x01"))
}

func (s *Session) SetTopic(channel, topic string) {
	s.send(NewMessage("TOPIC", channel, topic))
}

func (s *Session) ChangeMode(target, modes string, params ...string) {
	args := append([]string{target, modes}, params...)
	s.send(NewMessage("MODE", args...))
}

func (s *Session) Ping(token string) {
	s.send(NewMessage("PING", token))
}
