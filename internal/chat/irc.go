package chat

import (
	"strings"
	"unicode/utf8"
)

// Line is one parsed IRC line. Twitch message tags are kept raw.
type Line struct {
	Tags    string
	Prefix  string
	Command string
	Params  []string
}

// Nick returns the nick part of the prefix ("nick!user@host").
func (l Line) Nick() string {
	nick, _, _ := strings.Cut(l.Prefix, "!")
	return nick
}

// Trailing returns the last parameter, or "".
func (l Line) Trailing() string {
	if len(l.Params) == 0 {
		return ""
	}
	return l.Params[len(l.Params)-1]
}

// ParseLine splits a raw IRC line. It reports false for empty input.
func ParseLine(raw string) (Line, bool) {
	raw = strings.TrimRight(raw, "\r\n")
	var l Line

	if strings.HasPrefix(raw, "@") {
		var ok bool
		l.Tags, raw, ok = strings.Cut(raw[1:], " ")
		if !ok {
			return Line{}, false
		}
	}
	raw = strings.TrimLeft(raw, " ")

	if strings.HasPrefix(raw, ":") {
		var ok bool
		l.Prefix, raw, ok = strings.Cut(raw[1:], " ")
		if !ok {
			return Line{}, false
		}
	}

	for raw != "" {
		raw = strings.TrimLeft(raw, " ")
		if raw == "" {
			break
		}
		if strings.HasPrefix(raw, ":") {
			l.Params = append(l.Params, raw[1:])
			break
		}
		var param string
		param, raw, _ = strings.Cut(raw, " ")
		if l.Command == "" {
			l.Command = strings.ToUpper(param)
		} else {
			l.Params = append(l.Params, param)
		}
	}

	if l.Command == "" {
		return Line{}, false
	}
	return l, true
}

// maxText keeps a PRIVMSG under the 512 byte IRC line limit with room for the prefix.
const maxText = 400

// privmsgLines formats text for target, one line per input line, long lines split.
func privmsgLines(target, text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for line != "" {
			chunk := line
			if len(chunk) > maxText {
				cut := strings.LastIndex(chunk[:maxText], " ")
				if cut <= 0 {
					cut = maxText
					for cut > 0 && !utf8.RuneStart(chunk[cut]) {
						cut--
					}
				}
				chunk = chunk[:cut]
			}
			out = append(out, "PRIVMSG "+target+" :"+chunk)
			line = strings.TrimSpace(line[len(chunk):])
		}
	}
	return out
}
