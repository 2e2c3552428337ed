package middleware

import "net/url"

var sensitiveParams = []string{"token", "access_token"}

// redactQuery masks credentials passed as query parameters, e.g. the socket token.
func redactQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	changed := false
	for _, k := range sensitiveParams {
		if values.Has(k) {
			values.Set(k, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}
