package state

import (
	"regexp"
	"strings"
)

var urlRe = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"]+`)

// ExtractURLs returns the http(s) links in text, in order of appearance,
// without trailing punctuation.
func ExtractURLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?)]}'")
		if len(m) > len("https://") {
			urls = append(urls, m)
		}
	}
	return urls
}
