package service

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(
	`^(([^<>()\[\]\\.,;:#\s@"]+(\.[^<>()\[\]\\.,;:#\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`,
)

func validEmail(email string) bool {
	return emailPattern.MatchString(strings.ToLower(email))
}

// checkPassword enforces the credential policy, returning the wire message of
// the first violated rule.
func checkPassword(value string) string {
	if len(value) < 6 {
		return "Password must be at least 6 characters long"
	}
	if !strings.ContainsFunc(value, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		return "Password must contain at least one uppercase letter"
	}
	if !strings.ContainsFunc(value, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		return "Password must contain at least one lowercase letter"
	}
	if !strings.ContainsFunc(value, func(r rune) bool { return r >= '0' && r <= '9' }) {
		return "Password must contain at least one number"
	}
	if len(value) > 60 {
		return "Password is too long"
	}
	return ""
}

// defaultUsername derives a handle from the email: local part joined to the
// first domain label, lowercased.
func defaultUsername(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return strings.ToLower(email)
	}
	local := email[:at]
	domain := email[at+1:]
	if dot := strings.IndexByte(domain, '.'); dot >= 0 {
		domain = domain[:dot]
	}
	return strings.ToLower(local + "_" + domain)
}
