package irc

import (
	"fmt"
	"strings"
	"time"
)

// A ParseError reports a line that could not be parsed as an IRC
// message. The raw line is kept so that raw observers still see it.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bad message %q: %s", e.Raw, e.Reason)
}

var tagEscaper = strings.NewReplacer(
	";", `\:`,
	" ", `\s`,
	"\r", `\r`,
	"\n", `\n`,
	`\`, `\\`,
)

func escapeTagValue(unescaped string) string {
	return tagEscaper.Replace(unescaped)
}

func unescapeTagValue(escaped string) string {
	if !strings.ContainsRune(escaped, '\\') {
		return escaped
	}
	var sb strings.Builder
	sb.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		if escaped[i] != '\\' {
			sb.WriteByte(escaped[i])
			continue
		}
		i++
		if i == len(escaped) {
			break
		}
		switch escaped[i] {
		case ':':
			sb.WriteByte(';')
		case 's':
			sb.WriteByte(' ')
		case 'r':
			sb.WriteByte('\r')
		case 'n':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(escaped[i])
		}
	}
	return sb.String()
}

// A Prefix is the source of a message, either a server name or a
// nick[!user][@host] mask.
type Prefix struct {
	Name string
	User string
	Host string
}

// ParsePrefix splits a message source into its name, user and host
// parts. Both the user and host parts are optional.
func ParsePrefix(s string) *Prefix {
	if s == "" {
		return nil
	}
	p := &Prefix{}
	rest := s
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		p.Host = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '!'); i >= 0 {
		p.User = rest[i+1:]
		rest = rest[:i]
	}
	p.Name = rest
	return p
}

func (p *Prefix) String() string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(p.Name)
	if p.User != "" {
		sb.WriteByte('!')
		sb.WriteString(p.User)
	}
	if p.Host != "" {
		sb.WriteByte('@')
		sb.WriteString(p.Host)
	}
	return sb.String()
}

// Copy returns a deep copy of the prefix, or nil.
func (p *Prefix) Copy() *Prefix {
	if p == nil {
		return nil
	}
	q := *p
	return &q
}

// A Message is one parsed IRC protocol line.
type Message struct {
	Tags    map[string]string
	Prefix  *Prefix
	Command string
	Params  []string
}

// NewMessage makes a message without tags or prefix.
func NewMessage(command string, params ...string) Message {
	return Message{Command: command, Params: params}
}

// ParseMessage parses line as an IRC message. The caller must have
// stripped the trailing CR LF. Parse errors are of type *ParseError.
func ParseMessage(line string) (msg Message, err error) {
	line = strings.TrimLeft(line, " ")
	if line == "" {
		return msg, &ParseError{Raw: line, Reason: "empty line"}
	}

	if line[0] == '@' {
		s := line[1:]
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			return msg, &ParseError{Raw: line, Reason: "tags with no command"}
		}
		msg.Tags = make(map[string]string)
		for _, tag := range strings.Split(s[:i], ";") {
			if tag == "" {
				continue
			}
			key, value, _ := strings.Cut(tag, "=")
			msg.Tags[key] = unescapeTagValue(value)
		}
		line = strings.TrimLeft(s[i:], " ")
	}

	if line != "" && line[0] == ':' {
		s := line[1:]
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			return msg, &ParseError{Raw: line, Reason: "prefix with no command"}
		}
		msg.Prefix = ParsePrefix(s[:i])
		line = strings.TrimLeft(s[i:], " ")
	}

	if line == "" {
		return msg, &ParseError{Raw: line, Reason: "no command"}
	}

	if i := strings.IndexByte(line, ' '); i < 0 {
		msg.Command = strings.ToUpper(line)
		return msg, nil
	} else {
		msg.Command = strings.ToUpper(line[:i])
		line = strings.TrimLeft(line[i:], " ")
	}

	for line != "" {
		if line[0] == ':' {
			msg.Params = append(msg.Params, line[1:])
			break
		}
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			msg.Params = append(msg.Params, line)
			break
		}
		msg.Params = append(msg.Params, line[:i])
		line = strings.TrimLeft(line[i:], " ")
	}

	return msg, nil
}

// String serializes the message back to one wire line, without the
// trailing CR LF. Parsing a line, serializing it and parsing the result
// yields the same message.
func (msg Message) String() string {
	var sb strings.Builder

	if len(msg.Tags) != 0 {
		sb.WriteByte('@')
		first := true
		for key, value := range msg.Tags {
			if !first {
				sb.WriteByte(';')
			}
			first = false
			sb.WriteString(key)
			if value != "" {
				sb.WriteByte('=')
				sb.WriteString(escapeTagValue(value))
			}
		}
		sb.WriteByte(' ')
	}

	if msg.Prefix != nil {
		sb.WriteByte(':')
		sb.WriteString(msg.Prefix.String())
		sb.WriteByte(' ')
	}

	sb.WriteString(msg.Command)

	for i, param := range msg.Params {
		sb.WriteByte(' ')
		if i == len(msg.Params)-1 && (param == "" || param[0] == ':' || strings.ContainsRune(param, ' ')) {
			sb.WriteByte(':')
		}
		sb.WriteString(param)
	}

	return sb.String()
}

// IsReply reports whether the message command is a 3-digit numeric.
func (msg Message) IsReply() bool {
	if len(msg.Command) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if msg.Command[i] < '0' || msg.Command[i] > '9' {
			return false
		}
	}
	return true
}

// Param returns the i-th parameter, or the empty string when the
// message is shorter than that.
func (msg Message) Param(i int) string {
	if i < 0 || i >= len(msg.Params) {
		return ""
	}
	return msg.Params[i]
}

func (msg Message) assertNParams(n int) error {
	if len(msg.Params) < n {
		return &ParseError{Raw: msg.String(), Reason: fmt.Sprintf("%s with %d params, need %d", msg.Command, len(msg.Params), n)}
	}
	return nil
}

// TimestampOrNow returns the server-time tag of the message if present
// and valid, and the current time otherwise.
func (msg Message) TimestampOrNow() time.Time {
	if t, ok := msg.Tags["time"]; ok {
		if ts, err := time.Parse("2006-01-02T15:04:05.000Z", t); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}
