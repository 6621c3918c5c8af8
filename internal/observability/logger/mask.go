package logger

import "strings"

// MaskEmail hides the local part of a billing contact address, keeping the
// first character and the domain so log lines stay correlatable.
func MaskEmail(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return maskTail(value)
	}
	local, domain := value[:at], value[at+1:]
	if len(local) == 1 {
		return "*@" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + "@" + domain
}

// MaskValue masks everything but the last four characters.
func MaskValue(value string) string {
	return maskTail(strings.TrimSpace(value))
}

func maskTail(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
