package models

import (
	"regexp"
	"strings"
)

// ResponseMatcher selects network responses by URL and request method.
// Empty fields match everything.
type ResponseMatcher struct {
	Pattern  *regexp.Regexp // URL must match when set
	Contains string         // URL must contain when set
	Method   string         // Request method must equal (case-insensitive) when set
}

// Matches reports whether a response for url, requested with method, is selected
func (m ResponseMatcher) Matches(url, method string) bool {
	if m.Pattern != nil && !m.Pattern.MatchString(url) {
		return false
	}
	if m.Contains != "" && !strings.Contains(url, m.Contains) {
		return false
	}
	if m.Method != "" && !strings.EqualFold(m.Method, method) {
		return false
	}
	return true
}

func (m ResponseMatcher) String() string {
	parts := []string{}
	if m.Method != "" {
		parts = append(parts, strings.ToUpper(m.Method))
	}
	if m.Pattern != nil {
		parts = append(parts, m.Pattern.String())
	}
	if m.Contains != "" {
		parts = append(parts, "*"+m.Contains+"*")
	}
	if len(parts) == 0 {
		return "any response"
	}
	return strings.Join(parts, " ")
}

// ObservedResponse is a network response resolved by a response waiter
type ObservedResponse struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	Status int64  `json:"status"`
}
