package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// UrlQuery escapes s for use as a q= parameter value; spaces become "+".
func UrlQuery(s string) string { return url.QueryEscape(strings.TrimSpace(s)) }

// Str renders an untyped JSON value as a string, nil as empty.
func Str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
