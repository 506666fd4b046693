package irc

import "time"

// Direction tells whether an event was received from the server or sent
// to it. Both is only meaningful as a handler filter.
type Direction int

const (
	In Direction = iota
	Out
	Both
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return "both"
	}
}

// Matches reports whether an event of direction d passes a handler
// registered with filter f.
func (f Direction) Matches(d Direction) bool {
	return f == Both || f == d
}

// An Event is one protocol occurrence on a Session, inbound or
// outbound. Name is the canonical event name from the verb/numeric
// table; Detail is the variant payload for that name. State referenced
// by the payload (users, channels) is already updated when handlers see
// the event.
type Event struct {
	Session   *Session
	Direction Direction
	Name      string
	Time      time.Time
	Raw       Message
	Detail    any
}

// Wildcard names accepted at handler registration.
const (
	EventAny = "*"   // every event, including raw
	EventRaw = "raw" // one per wire line, before semantic events
)

// RawEvent is dispatched for every line, inbound and outbound,
// including lines that failed to parse.
type RawEvent struct {
	Line string
	// Err is set when the line did not parse; no semantic event
	// follows in that case.
	Err *ParseError
}

// RegisteredEvent signals 001: the connection is registered and the
// server told us our (possibly truncated) nickname.
type RegisteredEvent struct {
	Nick string
}

// MessageEvent is a PRIVMSG or NOTICE, refined to the names privmsg,
// pubmsg, privnotice or pubnotice depending on the target. Channel is
// nil for the private forms. Text is wire text; use Escape for the
// human-readable form.
type MessageEvent struct {
	From    *User
	Target  string
	Channel *Channel
	Text    string
}

// CTCPEvent is a CTCP query (name ctcp), reply (ctcp_reply) or action
// (action) unpacked from a PRIVMSG or NOTICE.
type CTCPEvent struct {
	From     *User
	Target   string
	Channel  *Channel
	CtcpVerb string
	CtcpText string
}

type JoinEvent struct {
	Channel *Channel
	User    *User
}

// PartEvent carries the channel as last known before the membership was
// removed. When the local user parted, the channel object is historic:
// Joined is false and it is pruned once dispatch completes.
type PartEvent struct {
	Channel *Channel
	User    *User
	Reason  string
}

type KickEvent struct {
	Channel *Channel
	User    *User // the user kicked out
	By      *User
	Reason  string
}

// QuitEvent lists every channel the user was seen in before the
// memberships were removed.
type QuitEvent struct {
	User     *User
	Channels []*Channel
	Reason   string
}

// NickEvent reports a rename. User is the same object as before the
// event, already carrying NewNick.
type NickEvent struct {
	User    *User
	OldNick string
	NewNick string
}

// ChghostEvent reports a user/host change, carrying both the old and
// the new values. User is already updated.
type ChghostEvent struct {
	User    *User
	OldUser string
	OldHost string
	NewUser string
	NewHost string
}

type TopicEvent struct {
	Channel *Channel
	Topic   string
	By      *User // nil when the topic comes from a numeric
}

// ModeEvent is one discrete mode change. A MODE line setting several
// modes produces one event per change. Channel is nil for user modes
// (name umode), set for channel modes (name cmode).
type ModeEvent struct {
	Channel *Channel
	Target  string
	By      *User
	Plus    bool
	Mode    byte
	Param   string
}

// NamesEvent signals the end of a NAMES burst for a channel, after its
// membership has been populated.
type NamesEvent struct {
	Channel *Channel
}

type AwayEvent struct {
	User *User
	Away bool
}

type PingEvent struct {
	Token string
}

type PongEvent struct {
	Token string
}

// CapEvent reports a capability negotiation step. Caps holds the
// capability names of this step mapped to their advertised values.
type CapEvent struct {
	Subcommand string
	Caps       map[string]string
	More       bool
}

// FeaturesEvent signals an ISUPPORT line after ingestion.
type FeaturesEvent struct {
	Features *Features
}

type InviteEvent struct {
	Channel *Channel
	User    *User
	By      *User
}

// InfoEvent is the generic payload for informational numerics without a
// dedicated variant. Message is formatting-escaped.
type InfoEvent struct {
	Code    string
	Message string
}

// ErrorEvent is the payload for error numerics and the ERROR verb.
type ErrorEvent struct {
	Severity Severity
	Code     string
	Message  string
}

type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarn
	SeverityFail
)
