package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Parser recognises lines addressed to the bot, either by prefix ("!help")
// or by mention ("streambot: help", "@streambot help").
type Parser struct {
	prefix string
	nick   string
}

// NewParser returns a parser for the given command prefix and bot nick.
func NewParser(prefix, nick string) *Parser {
	return &Parser{prefix: prefix, nick: strings.ToLower(nick)}
}

// rule tries one sub-grammar. It receives a copy of the cursor, so a failed
// attempt leaves nothing behind for the next alternative.
type rule func(c cursor) (Command, bool)

// rules are tried in order; the first full match wins.
var rules = []rule{
	parseRemind,
	parsePrice,
	parseSet,
	parseUnset,
	parseURL,
	parseCancer,
	parseDate,
	parseHelp,
	parseJoke,
}

// Parse returns the command in line, or false when the line is not a command.
// It never fails loudly: unknown or malformed input simply does not match.
func (p *Parser) Parse(line string) (Command, bool) {
	body, ok := p.addressed(strings.TrimSpace(line))
	if !ok {
		return nil, false
	}
	return parseBody(body)
}

// ParseDirect parses a line sent privately to the bot, where the prefix
// or mention is optional.
func (p *Parser) ParseDirect(line string) (Command, bool) {
	if cmd, ok := p.Parse(line); ok {
		return cmd, true
	}
	return parseBody(line)
}

func parseBody(body string) (Command, bool) {
	c := cursor{toks: strings.Fields(body)}
	if c.done() {
		return nil, false
	}

	for _, r := range rules {
		if cmd, ok := r(c); ok {
			return cmd, true
		}
	}
	return nil, false
}

// addressed strips the prefix or mention and reports whether the line targets the bot.
func (p *Parser) addressed(line string) (string, bool) {
	if p.prefix != "" && strings.HasPrefix(line, p.prefix) {
		return line[len(p.prefix):], true
	}
	if p.nick == "" {
		return "", false
	}

	first, rest, _ := strings.Cut(line, " ")
	name := strings.TrimPrefix(strings.ToLower(first), "@")
	name = strings.TrimRight(name, ":,")
	if name != p.nick {
		return "", false
	}
	return rest, true
}

// cursor walks the whitespace-separated tokens of a command line.
type cursor struct {
	toks []string
	pos  int
}

func (c cursor) done() bool { return c.pos >= len(c.toks) }

func (c cursor) peek() string {
	if c.done() {
		return ""
	}
	return c.toks[c.pos]
}

func (c *cursor) next() (string, bool) {
	if c.done() {
		return "", false
	}
	t := c.toks[c.pos]
	c.pos++
	return t, true
}

// keyword consumes the next token if it equals one of words, ignoring case.
func (c *cursor) keyword(words ...string) bool {
	tok := strings.ToLower(c.peek())
	for _, w := range words {
		if tok == w {
			c.pos++
			return true
		}
	}
	return false
}

// rest consumes and joins every remaining token.
func (c *cursor) rest() string {
	if c.done() {
		return ""
	}
	s := strings.Join(c.toks[c.pos:], " ")
	c.pos = len(c.toks)
	return s
}

func parsePrice(c cursor) (Command, bool) {
	if !c.keyword("price", "crypto", "coin") {
		return nil, false
	}
	sym, ok := c.next()
	if !ok || !c.done() || !isSymbol(sym) {
		return nil, false
	}
	return CryptoPrice{Symbol: strings.ToUpper(sym)}, true
}

var symbolRe = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)

func isSymbol(s string) bool { return symbolRe.MatchString(s) }

func parseSet(c cursor) (Command, bool) {
	if !c.keyword("set") {
		return nil, false
	}
	key, ok := c.next()
	if !ok {
		return nil, false
	}
	value := c.rest()
	if value == "" {
		return nil, false
	}
	return SetSetting{Key: strings.ToLower(key), Value: value}, true
}

func parseUnset(c cursor) (Command, bool) {
	if !c.keyword("unset") {
		return nil, false
	}
	key, ok := c.next()
	if !ok || !c.done() {
		return nil, false
	}
	return UnsetSetting{Key: strings.ToLower(key)}, true
}

func parseURL(c cursor) (Command, bool) {
	if !c.keyword("url", "urls", "link") {
		return nil, false
	}
	if c.done() {
		return URLLookup{Index: 0}, true
	}
	n, err := strconv.Atoi(c.peek())
	if err != nil || n < 0 {
		return nil, false
	}
	c.pos++
	if !c.done() {
		return nil, false
	}
	return URLLookup{Index: n}, true
}

func parseCancer(c cursor) (Command, bool) {
	if !c.keyword("cancer") {
		return nil, false
	}
	return CancerLink{Pattern: c.rest()}, true
}

func parseDate(c cursor) (Command, bool) {
	if !c.keyword("date", "time", "now") {
		return nil, false
	}
	zone, _ := c.next()
	if !c.done() {
		return nil, false
	}
	return Date{Zone: zone}, true
}

func parseHelp(c cursor) (Command, bool) {
	if !c.keyword("help", "aide") {
		return nil, false
	}
	return Help{Topic: strings.ToLower(c.rest())}, true
}

func parseJoke(c cursor) (Command, bool) {
	if !c.keyword("joke", "blague") || !c.done() {
		return nil, false
	}
	return Joke{}, true
}

// parseRemind covers the whole reminder family; its own alternatives
// backtrack to the cursor position right after the keyword.
func parseRemind(c cursor) (Command, bool) {
	if !c.keyword("remind", "reminder", "rappel") {
		return nil, false
	}

	for _, r := range []rule{remindList, remindDelete, remindCreate} {
		if cmd, ok := r(c); ok {
			return cmd, true
		}
	}
	return nil, false
}

func remindList(c cursor) (Command, bool) {
	if !c.keyword("list", "ls") || !c.done() {
		return nil, false
	}
	return RemindList{}, true
}

func remindDelete(c cursor) (Command, bool) {
	if !c.keyword("delete", "del", "rm", "remove") {
		return nil, false
	}
	tok, ok := c.next()
	if !ok || !c.done() {
		return nil, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(tok, "#"), 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return RemindDelete{ID: id}, true
}

func remindCreate(c cursor) (Command, bool) {
	c.keyword("me")

	type whenRule func(c *cursor) (When, bool)
	for _, r := range []whenRule{remindIn, remindAt, remindWeekday} {
		attempt := c
		when, ok := r(&attempt)
		if !ok {
			continue
		}
		text := attempt.rest()
		if text == "" {
			continue
		}
		return RemindCreate{When: when, Text: text}, true
	}
	return nil, false
}

func remindIn(c *cursor) (When, bool) {
	if !c.keyword("in", "dans") {
		return nil, false
	}
	off, ok := parseOffset(c)
	if !ok || off.IsZero() {
		return nil, false
	}
	return off, true
}

func remindAt(c *cursor) (When, bool) {
	if !c.keyword("at", "on", "le", "à") {
		return nil, false
	}
	if clock, ok := parseClock(c.peek()); ok {
		c.pos++
		return ClockTime{Clock: clock}, true
	}
	if day, ok := parseWeekday(c.peek()); ok {
		c.pos++
		return weekdayWithClock(c, day), true
	}

	// Longest date prefix first, always leaving at least one token of text.
	// A prefix must end on a token with a digit so words of the message are
	// not read as zone names.
	remaining := len(c.toks) - c.pos
	for n := min(3, remaining-1); n >= 1; n-- {
		if !strings.ContainsAny(c.toks[c.pos+n-1], "0123456789") {
			continue
		}
		text := strings.Join(c.toks[c.pos:c.pos+n], " ")
		if _, err := dateparse.ParseIn(text, time.UTC); err == nil {
			c.pos += n
			return DateTime{Text: text}, true
		}
	}
	return nil, false
}

func remindWeekday(c *cursor) (When, bool) {
	c.keyword("next", "prochain")
	day, ok := parseWeekday(c.peek())
	if !ok {
		return nil, false
	}
	c.pos++
	return weekdayWithClock(c, day), true
}

// weekdayWithClock consumes an optional "[at] HH:MM" after a weekday.
func weekdayWithClock(c *cursor, day time.Weekday) Weekday {
	w := Weekday{Day: day}
	attempt := *c
	attempt.keyword("at", "à")
	if clock, ok := parseClock(attempt.peek()); ok {
		attempt.pos++
		*c = attempt
		w.HasClock = true
		w.Clock = clock
	}
	return w
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "dimanche": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "lundi": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "mardi": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "mercredi": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "jeudi": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "vendredi": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "samedi": time.Saturday,
}

func parseWeekday(tok string) (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(tok)]
	return d, ok
}

// clockRe accepts 14:30, 9:05, 14h, 14h30.
var clockRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2})|h(\d{2})?)$`)

func parseClock(tok string) (Clock, bool) {
	m := clockRe.FindStringSubmatch(strings.ToLower(tok))
	if m == nil {
		return Clock{}, false
	}
	h, _ := strconv.Atoi(m[1])
	minute := 0
	if mm := m[2] + m[3]; mm != "" {
		minute, _ = strconv.Atoi(mm)
	}
	if h > 23 || minute > 59 {
		return Clock{}, false
	}
	return Clock{Hour: h, Minute: minute}, true
}

// durationPartRe matches one "<n><unit>" piece; compactRe a run of them ("1h30m").
var (
	durationPartRe = regexp.MustCompile(`(\d+)([a-z]+)`)
	compactRe      = regexp.MustCompile(`^(?:\d+[a-z]+)+$`)
)

// parseOffset consumes as many duration pieces as it can: "1h30m", "2 days",
// "1 hour and 5 minutes". Pieces add up.
func parseOffset(c *cursor) (Offset, bool) {
	var total Offset
	matched := false

	for !c.done() {
		attempt := *c
		if matched {
			attempt.keyword("and", "et")
		}
		off, ok := offsetPiece(&attempt)
		if !ok {
			break
		}
		total = total.add(off)
		if total.spanDays() > maxOffsetDays {
			return Offset{}, false
		}
		matched = true
		*c = attempt
	}
	return total, matched
}

func offsetPiece(c *cursor) (Offset, bool) {
	tok := strings.ToLower(c.peek())

	if compactRe.MatchString(tok) {
		var total Offset
		for _, m := range durationPartRe.FindAllStringSubmatch(tok, -1) {
			off, ok := unitOffset(m[1], m[2])
			if !ok {
				return Offset{}, false
			}
			total = total.add(off)
		}
		c.pos++
		return total, true
	}

	if c.pos+1 < len(c.toks) {
		if off, ok := unitOffset(tok, strings.ToLower(c.toks[c.pos+1])); ok {
			c.pos += 2
			return off, true
		}
	}
	return Offset{}, false
}

func unitOffset(num, unit string) (Offset, bool) {
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 || n > 100000 {
		return Offset{}, false
	}
	switch unit {
	case "y", "yr", "yrs", "year", "years", "an", "ans":
		return Offset{Years: n}, true
	case "mo", "mon", "month", "months", "mois":
		return Offset{Months: n}, true
	case "w", "wk", "wks", "week", "weeks", "semaine", "semaines":
		return Offset{Days: 7 * n}, true
	case "d", "day", "days", "j", "jour", "jours":
		return Offset{Days: n}, true
	case "h", "hr", "hrs", "hour", "hours", "heure", "heures":
		return Offset{Hours: n}, true
	case "m", "min", "mins", "minute", "minutes":
		return Offset{Minutes: n}, true
	}
	return Offset{}, false
}
