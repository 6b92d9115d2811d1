package pipeline

import (
	"regexp"
	"sort"
	"strings"
)

// keywordGroups expands category shorthands into name tokens, per game
var keywordGroups = map[string]map[string][]string{
	"cs2": {
		"knife":   {"knife", "bayonet", "karambit", "huntsman", "butterfly", "falchion", "gut", "flip", "daggers", "bowie", "paracord", "survival", "ursus", "navaja", "stiletto", "talon"},
		"gloves":  {"gloves", "hand wraps"},
		"rifle":   {"ak-47", "m4a4", "m4a1-s", "awp", "aug", "sg 553", "famas", "galil ar", "scar-20", "g3sg1"},
		"pistol":  {"glock-18", "usp-s", "p2000", "p250", "five-seven", "tec-9", "cz75-auto", "desert eagle", "dual berettas", "r8 revolver"},
		"smg":     {"mac-10", "mp9", "mp7", "ump-45", "p90", "pp-bizon", "mp5-sd"},
		"shotgun": {"nova", "xm1014", "sawed-off", "mag-7"},
		"case":    {"case"},
		"sticker": {"sticker"},
	},
	"dota2": {
		"courier":  {"courier"},
		"ward":     {"ward", "observer ward", "sentry ward"},
		"treasure": {"treasure", "chest", "cache"},
		"arcana":   {"arcana"},
		"immortal": {"immortal"},
	},
	"tf2": {
		"hat":     {"hat", "cap", "helm", "helmet", "mask", "bandana", "beret", "beanie"},
		"taunt":   {"taunt"},
		"crate":   {"crate", "case", "supply crate"},
		"key":     {"key"},
		"strange": {"strange"},
	},
	"rust": {
		"door":   {"door", "garage door"},
		"weapon": {"ak-47", "lr-300", "mp5", "thompson", "python", "bolt"},
	},
}

// exclusions drop names that share a token with a category but are not of it
var exclusions = map[string]map[string][]string{
	"cs2": {
		"knife":  {"case", "key", "sticker", "souvenir", "patch", "charm", "music kit", "pin"},
		"gloves": {"case", "sticker", "souvenir", "patch", "charm"},
		"rifle":  {"case", "sticker", "souvenir", "patch", "charm"},
		"pistol": {"case", "sticker", "souvenir", "patch", "charm"},
		"smg":    {"case", "sticker", "souvenir", "patch", "charm"},
	},
}

// NameFilter matches item names against a set of word tokens
type NameFilter struct {
	tokens   []token
	excluded []*regexp.Regexp
}

type token struct {
	text     string
	re       *regexp.Regexp
	excludes []*regexp.Regexp
}

// ParseNameFilter expands a comma separated filter list for game. Category
// names expand to their tokens; anything else is matched literally.
func ParseNameFilter(raw, game string) *NameFilter {
	groups := keywordGroups[game]
	excl := exclusions[game]

	seen := make(map[string][]string)
	for _, part := range strings.Split(raw, ",") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		if toks, ok := groups[p]; ok {
			for _, t := range toks {
				seen[t] = excl[p]
			}
			continue
		}
		if _, ok := seen[p]; !ok {
			seen[p] = nil
		}
	}

	f := &NameFilter{}
	for text, ex := range seen {
		t := token{text: text, re: wordPattern(text)}
		for _, e := range ex {
			t.excludes = append(t.excludes, wordPattern(e))
		}
		f.tokens = append(f.tokens, t)
	}
	sort.Slice(f.tokens, func(i, j int) bool { return f.tokens[i].text < f.tokens[j].text })
	return f
}

// wordPattern matches text not embedded in a longer alphabetic word
func wordPattern(text string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^a-z])` + regexp.QuoteMeta(text) + `($|[^a-z])`)
}

// Empty reports whether the filter accepts everything
func (f *NameFilter) Empty() bool {
	return f == nil || len(f.tokens) == 0
}

// Tokens returns the expanded tokens in sorted order
func (f *NameFilter) Tokens() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.tokens))
	for i, t := range f.tokens {
		out[i] = t.text
	}
	return out
}

// Match reports whether name contains any token and none of that token's
// category exclusions
func (f *NameFilter) Match(name string) bool {
	if f.Empty() {
		return true
	}
	for _, t := range f.tokens {
		if !t.re.MatchString(name) {
			continue
		}
		excluded := false
		for _, ex := range t.excludes {
			if ex.MatchString(name) {
				excluded = true
				break
			}
		}
		if !excluded {
			return true
		}
	}
	return false
}
