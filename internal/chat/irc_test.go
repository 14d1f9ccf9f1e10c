package chat

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Line
	}{
		{
			name: "privmsg with tags",
			raw:  "@badge-info=;color=#FF0000 :alice!alice@alice.tmi.twitch.tv PRIVMSG #gikiam :!url 2\r\n",
			want: Line{
				Tags:    "badge-info=;color=#FF0000",
				Prefix:  "alice!alice@alice.tmi.twitch.tv",
				Command: "PRIVMSG",
				Params:  []string{"#gikiam", "!url 2"},
			},
		},
		{
			name: "ping",
			raw:  "PING :tmi.twitch.tv",
			want: Line{Command: "PING", Params: []string{"tmi.twitch.tv"}},
		},
		{
			name: "numeric",
			raw:  ":tmi.twitch.tv 001 streambot :Welcome, GLHF!",
			want: Line{Prefix: "tmi.twitch.tv", Command: "001", Params: []string{"streambot", "Welcome, GLHF!"}},
		},
		{
			name: "lowercase command",
			raw:  "join #x",
			want: Line{Command: "JOIN", Params: []string{"#x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_Invalid(t *testing.T) {
	for _, raw := range []string{"", "\r\n", "@tags-only", ":prefix-only", "   "} {
		_, ok := ParseLine(raw)
		assert.False(t, ok, raw)
	}
}

func TestLine_NickAndTrailing(t *testing.T) {
	l := Line{Prefix: "bob!bob@host", Params: []string{"#x", "hello world"}}
	assert.Equal(t, "bob", l.Nick())
	assert.Equal(t, "hello world", l.Trailing())
	assert.Equal(t, "", Line{}.Trailing())
}

func TestPrivmsgLines(t *testing.T) {
	assert.Equal(t, []string{"PRIVMSG #x :hi"}, privmsgLines("#x", "hi"))
	assert.Equal(t, []string{"PRIVMSG #x :one", "PRIVMSG #x :two"}, privmsgLines("#x", "one\n\ntwo\n"))
	assert.Empty(t, privmsgLines("#x", "  \n "))

	long := strings.Repeat("word ", 200)
	lines := privmsgLines("#x", long)
	require.Greater(t, len(lines), 1)

	var rebuilt []string
	for _, l := range lines {
		text := strings.TrimPrefix(l, "PRIVMSG #x :")
		assert.LessOrEqual(t, len(text), maxText)
		rebuilt = append(rebuilt, text)
	}
	assert.Equal(t, strings.TrimSpace(long), strings.Join(rebuilt, " "))
}

func TestPrivmsgLines_KeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"euro signs", strings.Repeat("€", 200)},
		{"offset accents", "a" + strings.Repeat("é", 300)},
		{"emoji", strings.Repeat("🎉", 150)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := privmsgLines("#x", tt.text)
			require.Greater(t, len(lines), 1)

			var rebuilt strings.Builder
			for _, l := range lines {
				text := strings.TrimPrefix(l, "PRIVMSG #x :")
				assert.True(t, utf8.ValidString(text), "line is not valid UTF-8")
				assert.LessOrEqual(t, len(text), maxText)
				rebuilt.WriteString(text)
			}
			assert.Equal(t, tt.text, rebuilt.String())
		})
	}
}
