package deliver

import "strings"

// NormalizeChatID converts a phone-number-ish destination into the
// gateway's chat id form ("94771234567@c.us"). Ids already carrying a
// domain suffix pass through unchanged.
func NormalizeChatID(id string) string {
	if id == "" || strings.Contains(id, "@") {
		return id
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, id)
	if digits == "" {
		return id
	}
	return digits + "@c.us"
}
