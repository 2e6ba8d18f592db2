package moderation

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Blocklist holds the configured blocked words grouped by category. A hit
// does not stop delivery; the matched words are masked and the message is
// additionally recorded as sensitive.
type Blocklist struct {
	categories map[string][]string
	mask       string
}

func NewBlocklist(categories map[string][]string, maskSymbol string) *Blocklist {
	if maskSymbol == "" {
		maskSymbol = "*"
	}
	cleaned := make(map[string][]string, len(categories))
	for cat, words := range categories {
		kept := make([]string, 0, len(words))
		for _, w := range words {
			if w != "" {
				kept = append(kept, w)
			}
		}
		// Longest first so overlapping words mask fully.
		sort.Slice(kept, func(i, j int) bool { return len(kept[i]) > len(kept[j]) })
		cleaned[cat] = kept
	}
	return &Blocklist{categories: cleaned, mask: maskSymbol}
}

// Classify scans content for blocked words, case-insensitively. It returns
// the content with every match masked character for character, plus the
// categories that matched, in sorted order.
func (b *Blocklist) Classify(content string) (string, []string) {
	if len(b.categories) == 0 {
		return content, nil
	}
	lower := strings.ToLower(content)
	matched := map[string]bool{}
	masked := []rune(content)
	lowerRunes := []rune(lower)

	for cat, words := range b.categories {
		for _, word := range words {
			wordRunes := []rune(strings.ToLower(word))
			for i := 0; i+len(wordRunes) <= len(lowerRunes); i++ {
				if !runesEqual(lowerRunes[i:i+len(wordRunes)], wordRunes) {
					continue
				}
				matched[cat] = true
				maskRune, _ := utf8.DecodeRuneInString(b.mask)
				for j := i; j < i+len(wordRunes); j++ {
					masked[j] = maskRune
				}
			}
		}
	}

	if len(matched) == 0 {
		return content, nil
	}
	cats := make([]string, 0, len(matched))
	for cat := range matched {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return string(masked), cats
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
