package validate

import "strings"

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Snowflake reports whether value looks like a Discord snowflake ID.
func Snowflake(value string) bool {
	if len(value) < 17 || len(value) > 20 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
