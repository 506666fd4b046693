package irc

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire-level formatting control bytes.
const (
	formatBold      = 0x02
	formatColour    = 0x03
	formatReset     = 0x0F
	formatItalic    = 0x1D
	formatUnderline = 0x1F
)

// A FormatError reports an invalid formatting token passed to Unescape,
// such as an unknown colour name.
type FormatError struct {
	Token  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bad formatting token %q: %s", e.Token, e.Reason)
}

// The standard 16-colour mIRC palette, indexed by wire colour code.
var colourNames = []string{
	"white", "black", "blue", "green",
	"red", "brown", "magenta", "orange",
	"yellow", "light green", "cyan", "light cyan",
	"light blue", "pink", "grey", "light grey",
}

// ColourName returns the palette name for a wire colour code. Codes
// outside the 16-colour palette come back as "unknown: <code>" and
// round-trip through ColourCode.
func ColourName(code int) string {
	if 0 <= code && code < len(colourNames) {
		return colourNames[code]
	}
	return fmt.Sprintf("unknown: %d", code)
}

// ColourCode returns the wire colour code for a palette name.
func ColourCode(name string) (int, error) {
	for code, n := range colourNames {
		if n == name {
			return code, nil
		}
	}
	if rest, ok := strings.CutPrefix(name, "unknown: "); ok {
		name = rest
	}
	code, err := strconv.Atoi(name)
	if err != nil || code < 0 {
		return 0, &FormatError{Token: name, Reason: "unknown colour name"}
	}
	return code, nil
}

// digits consumes up to two leading ASCII digits of s and returns their
// value, the remainder, and whether any digit was present.
func digits(s string) (int, string, bool) {
	n := 0
	for n < 2 && n < len(s) && '0' <= s[n] && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, s, false
	}
	code, _ := strconv.Atoi(s[:n])
	return code, s[n:], true
}

// Escape converts wire-formatted text to its human-readable form: the
// bold, italic, underline, reset and colour control bytes become $b,
// $i, $u, $r and $c[...] tokens, and literal dollar signs become $$.
// Colour codes are rendered with their palette names, a bare colour
// byte as $c[]. Unrecognized control bytes pass through unchanged.
func Escape(wire string) string {
	var sb strings.Builder
	sb.Grow(len(wire))
	for len(wire) > 0 {
		c := wire[0]
		wire = wire[1:]
		switch c {
		case formatBold:
			sb.WriteString("$b")
		case formatItalic:
			sb.WriteString("$i")
		case formatUnderline:
			sb.WriteString("$u")
		case formatReset:
			sb.WriteString("$r")
		case '$':
			sb.WriteString("$$")
		case formatColour:
			fg, rest, ok := digits(wire)
			if !ok {
				sb.WriteString("$c[]")
				continue
			}
			wire = rest
			sb.WriteString("$c[")
			sb.WriteString(ColourName(fg))
			// a comma only belongs to the colour when a
			// background code follows it
			if len(wire) >= 2 && wire[0] == ',' {
				if bg, rest, ok := digits(wire[1:]); ok {
					wire = rest
					sb.WriteByte(',')
					sb.WriteString(ColourName(bg))
				}
			}
			sb.WriteByte(']')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Unescape converts human-readable formatting back to wire control
// bytes. It is the inverse of Escape. A trailing bare $c stands for a
// bare colour byte; unknown $-tokens and invalid colour names are
// errors of type *FormatError.
func Unescape(human string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(human))
	for len(human) > 0 {
		c := human[0]
		human = human[1:]
		if c != '$' {
			sb.WriteByte(c)
			continue
		}
		if len(human) == 0 {
			break
		}
		key := human[0]
		human = human[1:]
		switch key {
		case '$':
			sb.WriteByte('$')
		case 'b':
			sb.WriteByte(formatBold)
		case 'i':
			sb.WriteByte(formatItalic)
		case 'u':
			sb.WriteByte(formatUnderline)
		case 'r':
			sb.WriteByte(formatReset)
		case 'c':
			if len(human) == 0 || human[0] != '[' {
				sb.WriteByte(formatColour)
				continue
			}
			end := strings.IndexByte(human, ']')
			if end < 0 {
				return "", &FormatError{Token: "$c" + human, Reason: "unterminated colour"}
			}
			spec := human[1:end]
			human = human[end+1:]
			sb.WriteByte(formatColour)
			if spec == "" {
				continue
			}
			fgName, bgName, hasBg := strings.Cut(spec, ",")
			fg, err := ColourCode(fgName)
			if err != nil {
				return "", err
			}
			sb.WriteString(strconv.Itoa(fg))
			if hasBg {
				bg, err := ColourCode(bgName)
				if err != nil {
					return "", err
				}
				sb.WriteByte(',')
				sb.WriteString(strconv.Itoa(bg))
			}
		default:
			return "", &FormatError{Token: "$" + string(key), Reason: "unknown token"}
		}
	}
	return sb.String(), nil
}
