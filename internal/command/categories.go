package command

import (
	"sort"
	"strings"
)

// Category binds a family of command phrasings to one registered action.
// Phrases are matched as prefixes of the normalized command; the remainder
// becomes the argument named by ArgKey.
type Category struct {
	Name    string
	Action  string
	ArgKey  string
	Phrases []string
	// StaticArgs are merged into every intent this category produces.
	StaticArgs map[string]string
}

// builtinCategories covers the local command vocabulary. Order does not
// matter: the longest matching phrase wins across all categories.
func builtinCategories() []Category {
	return []Category{
		{
			Name:    "search",
			Action:  "web_search",
			ArgKey:  "query",
			Phrases: []string{"search for", "search", "google", "look up", "find"},
		},
		{
			Name:    "open",
			Action:  "open_app",
			ArgKey:  "app",
			Phrases: []string{"open", "launch", "start", "switch to"},
		},
		{
			Name:    "url",
			Action:  "open_url",
			ArgKey:  "url",
			Phrases: []string{"go to", "visit", "browse to"},
		},
		{
			Name:    "email",
			Action:  "compose_email",
			ArgKey:  "to",
			Phrases: []string{"email", "send an email to", "compose an email to", "mail"},
		},
		{
			Name:    "calendar",
			Action:  "schedule_event",
			ArgKey:  "event",
			Phrases: []string{"schedule", "book a meeting", "add to my calendar", "put on my calendar"},
		},
		{
			Name:    "music",
			Action:  "play_music",
			ArgKey:  "service",
			Phrases: []string{"play music", "play some music", "put on some music"},
		},
		{
			Name:    "note",
			Action:  "take_note",
			ArgKey:  "text",
			Phrases: []string{"note down", "take a note", "write down", "note"},
		},
		{
			Name:    "remind",
			Action:  "remind",
			ArgKey:  "message",
			Phrases: []string{"remind me to", "remind me", "remind", "set a reminder to"},
		},
	}
}

// knownApps are display names used to correct misspelled application
// arguments in the open category.
var knownApps = []string{
	"Chrome", "Safari", "Firefox", "Slack", "Spotify", "Terminal",
	"Mail", "Notes", "Calendar", "Messages", "Zoom", "Discord",
	"Finder", "Preview", "Xcode",
}

// phraseMatch describes one phrase of one category, used during routing.
type phraseMatch struct {
	category *Category
	phrase   string
}

// phrasesByLength returns every (category, phrase) pair sorted by phrase
// length descending, so "search for" is tried before "search".
func phrasesByLength(categories []Category) []phraseMatch {
	var out []phraseMatch
	for i := range categories {
		for _, p := range categories[i].Phrases {
			out = append(out, phraseMatch{category: &categories[i], phrase: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].phrase) > len(out[j].phrase)
	})
	return out
}

// normalize lowercases and collapses whitespace for matching.
func normalize(command string) string {
	return strings.Join(strings.Fields(strings.ToLower(command)), " ")
}

// splitPhrase reports whether the normalized command starts with the phrase
// at a word boundary, and returns the remainder after it.
func splitPhrase(normalized, phrase string) (string, bool) {
	if normalized == phrase {
		return "", true
	}
	prefix := phrase + " "
	if strings.HasPrefix(normalized, prefix) {
		return strings.TrimSpace(normalized[len(prefix):]), true
	}
	return "", false
}
