package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// plainKeys are identifiers MaskField may log verbatim.
var plainKeys = map[string]struct{}{
	"caller":    {},
	"component": {},
	"method":    {},
	"owner":     {},
	"requestid": {},
}

func mask(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskBearer hides the token in an Authorization header but keeps the
// scheme so malformed headers remain diagnosable.
func MaskBearer(header string) string {
	scheme, credential, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return mask(header)
	}
	return scheme + " " + mask(credential)
}

// MaskField logs value under key, redacted unless key names a plain
// identifier. Empty values are kept so unset secrets stay visible.
func MaskField(key, value string) slog.Attr {
	if _, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]; ok {
		return slog.String(key, value)
	}
	return slog.String(key, mask(value))
}
