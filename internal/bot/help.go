package bot

import (
	"sort"
	"strings"

	"github.com/parsascontentcorner/streambot/internal/models"
)

var settingHelp = map[string]string{
	models.SettingTimezone: "tz <zone>: your time zone, e.g. set tz Europe/Paris",
	models.SettingTitles:   "titles on|off: show page titles with url",
}

var commandHelp = map[string]string{
	"remind": "remind [me] in <1h30m|2 days...> <text> | remind at <14:30|2026-12-24 18:00> <text> | " +
		"remind [next] friday [at 9:00] <text> | remind list | remind delete <id>",
	"price":  "price <symbol>: coin price in USD and EUR",
	"set":    "set <key> <value>: store a setting (see help settings)",
	"unset":  "unset <key>: remove a setting",
	"url":    "url [n]: the n-th most recent link posted here, 0 is the latest",
	"cancer": "cancer [pattern]: link of the day, optionally matching pattern",
	"date":   "date [zone]: current date and time",
	"joke":   "joke: a joke",
	"help":   "help [topic]: this help",
}

var helpAliases = map[string]string{
	"reminder": "remind",
	"rappel":   "remind",
	"crypto":   "price",
	"coin":     "price",
	"link":     "url",
	"urls":     "url",
	"time":     "date",
	"now":      "date",
	"blague":   "joke",
	"aide":     "help",
}

func settingKeys() []string {
	keys := make([]string, 0, len(settingHelp))
	for k := range settingHelp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func helpText(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if alias, ok := helpAliases[topic]; ok {
		topic = alias
	}

	if topic == "settings" {
		lines := make([]string, 0, len(settingHelp))
		for _, k := range settingKeys() {
			lines = append(lines, settingHelp[k])
		}
		return strings.Join(lines, " | ")
	}
	if text, ok := settingHelp[topic]; ok {
		return text
	}
	if text, ok := commandHelp[topic]; ok {
		return text
	}

	topics := make([]string, 0, len(commandHelp))
	for k := range commandHelp {
		topics = append(topics, k)
	}
	sort.Strings(topics)
	return "commands: " + strings.Join(topics, ", ") + ". help <command> for details"
}
