package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WatchSpec pairs a Twitch account with the chat channel to notify when it goes live.
type WatchSpec struct {
	Login   string `yaml:"login"`
	Nick    string `yaml:"nick"`
	Channel string `yaml:"channel"`
}

type watchFile struct {
	Streams []WatchSpec `yaml:"streams"`
}

// LoadWatchSpecs reads the watch list from a YAML file.
// A missing file yields an empty list.
func LoadWatchSpecs(path string) ([]WatchSpec, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read watch file: %w", err)
	}
	return ParseWatchSpecs(data)
}

// ParseWatchSpecs decodes and validates a YAML watch list.
func ParseWatchSpecs(data []byte) ([]WatchSpec, error) {
	var f watchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode watch file: %w", err)
	}

	for i := range f.Streams {
		s := &f.Streams[i]
		s.Login = strings.TrimSpace(s.Login)
		if s.Login == "" {
			return nil, fmt.Errorf("watch entry %d: login is required", i)
		}
		if strings.Trim(s.Channel, "# \t") == "" {
			return nil, fmt.Errorf("watch entry %d (%s): channel is required", i, s.Login)
		}
		s.Channel = NormalizeChannel(s.Channel)
		if s.Nick == "" {
			s.Nick = s.Login
		}
	}

	return f.Streams, nil
}

// NormalizeChannel lowercases a channel name and adds the leading "#".
func NormalizeChannel(ch string) string {
	ch = strings.ToLower(strings.TrimSpace(ch))
	if !strings.HasPrefix(ch, "#") {
		ch = "#" + ch
	}
	return ch
}
