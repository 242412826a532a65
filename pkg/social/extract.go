package social

import "strings"

// extractTags scans content once and returns hashtags (lower-cased, '#'
// stripped) and mentions (verbatim, '@' stripped). Duplicates are kept so
// trending counts stay accurate; zero matches yield empty slices.
func extractTags(content string) (hashtags, mentions []string) {
	hashtags = []string{}
	mentions = []string{}
	for i := 0; i < len(content); i++ {
		c := content[i]
		if c != '#' && c != '@' {
			continue
		}
		j := i + 1
		for j < len(content) && isWordByte(content[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		word := content[i+1 : j]
		if c == '#' {
			hashtags = append(hashtags, strings.ToLower(word))
		} else {
			mentions = append(mentions, word)
		}
		i = j - 1
	}
	return hashtags, mentions
}

// isWordByte matches the \w class the tags were originally defined with.
func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
