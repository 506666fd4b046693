package irc

import (
	"strconv"
	"strings"
)

// Features holds the ISUPPORT tokens of the connection, with the
// special ones parsed out. Zero values mean the server said nothing.
type Features struct {
	CaseMappingName string
	ChanTypes       string
	// ChanModes are the four mode classes: list modes, modes with a
	// parameter, modes with a parameter only when set, flag modes.
	ChanModes     [4]string
	MemberModes   string // mode letters granting prefixes, "ov"
	MemberSymbols string // their symbols in rank order, "@+"
	Network       string
	LineLen       int
	MonitorLimit  int
	WhoX          bool

	raw map[string]string
}

// newFeatures returns the RFC 1459 baseline assumed before the server
// sends ISUPPORT.
func newFeatures() Features {
	f := Features{
		CaseMappingName: "rfc1459",
		ChanTypes:       "#",
		ChanModes:       [4]string{"beI", "k", "l", "imnst"},
		MemberModes:     "ov",
		MemberSymbols:   "@+",
		LineLen:         512,
		raw:             make(map[string]string),
	}
	return f
}

// Get returns the raw value of an ISUPPORT token, folded to lowercase
// keys. Valueless tokens are present with an empty value.
func (f *Features) Get(key string) (string, bool) {
	v, ok := f.raw[strings.ToLower(key)]
	return v, ok
}

// SymbolOf returns the prefix symbol of a member mode letter, or 0.
func (f *Features) SymbolOf(mode byte) byte {
	if i := strings.IndexByte(f.MemberModes, mode); i >= 0 && i < len(f.MemberSymbols) {
		return f.MemberSymbols[i]
	}
	return 0
}

// Ingest applies ISUPPORT tokens. A leading dash removes a token.
// It reports whether CASEMAPPING changed, in which case the caller
// must rebuild its folded containers.
func (f *Features) Ingest(tokens ...string) (casemapChanged bool) {
	for _, token := range tokens {
		if name, ok := strings.CutPrefix(token, "-"); ok {
			delete(f.raw, strings.ToLower(name))
			continue
		}
		name, value, _ := strings.Cut(token, "=")
		name = strings.ToLower(name)
		f.raw[name] = value

		switch name {
		case "casemapping":
			value = strings.ToLower(value)
			if value != f.CaseMappingName {
				f.CaseMappingName = value
				casemapChanged = true
			}
		case "chantypes":
			f.ChanTypes = value
		case "chanmodes":
			classes := strings.SplitN(value, ",", 5)
			for i := 0; i < 4 && i < len(classes); i++ {
				f.ChanModes[i] = classes[i]
			}
		case "prefix":
			// PREFIX=(ov)@+
			modes, symbols, ok := strings.Cut(value, ")")
			if ok && strings.HasPrefix(modes, "(") {
				f.MemberModes = modes[1:]
				f.MemberSymbols = symbols
			}
		case "network":
			f.Network = value
		case "linelen":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				f.LineLen = n
			}
		case "monitor":
			f.MonitorLimit = -1
			if n, err := strconv.Atoi(value); err == nil {
				f.MonitorLimit = n
			}
		case "whox":
			f.WhoX = true
		}
	}
	return casemapChanged
}

// A ModeChange is one discrete change of a MODE line.
type ModeChange struct {
	Plus  bool
	Mode  byte
	Param string
}

// ParseModes splits a mode string with its arguments into discrete
// changes. chanmodes tells which modes consume a parameter; nil means
// no mode does, which is right for user modes. prefixModes are member
// modes, which always take a nickname.
func ParseModes(params []string, chanmodes *[4]string, prefixModes string) []ModeChange {
	if len(params) == 0 {
		return nil
	}
	modes := params[0]
	args := params[1:]
	var changes []ModeChange
	plus := true
	for i := 0; i < len(modes); i++ {
		m := modes[i]
		switch m {
		case '+':
			plus = true
		case '-':
			plus = false
		default:
			change := ModeChange{Plus: plus, Mode: m}
			if takesParam(m, plus, chanmodes, prefixModes) && len(args) > 0 {
				change.Param = args[0]
				args = args[1:]
			}
			changes = append(changes, change)
		}
	}
	return changes
}

func takesParam(mode byte, plus bool, chanmodes *[4]string, prefixModes string) bool {
	if strings.IndexByte(prefixModes, mode) >= 0 {
		return true
	}
	if chanmodes == nil {
		return false
	}
	switch {
	case strings.IndexByte(chanmodes[0], mode) >= 0:
		return true
	case strings.IndexByte(chanmodes[1], mode) >= 0:
		return true
	case strings.IndexByte(chanmodes[2], mode) >= 0:
		return plus
	default:
		return false
	}
}
