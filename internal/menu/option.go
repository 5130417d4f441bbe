package menu

import "strings"

// ParseOption reads a single menu digit. It accepts "0".."9", keycap emoji
// ("1️⃣") and a trailing "." or ")".
func ParseOption(text string) (int, bool) {
	s := strings.TrimSpace(text)
	s = strings.NewReplacer("\ufe0f", "", "\u20e3", "").Replace(s)
	s = strings.TrimRight(s, ".)")
	s = strings.TrimSpace(s)
	if len(s) != 1 || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	return int(s[0] - '0'), true
}
