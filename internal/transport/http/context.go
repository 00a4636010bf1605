package http

import "context"

type contextKey string

const localeKey contextKey = "locale"

// GetLocale retrieves the negotiated locale from context.
func GetLocale(ctx context.Context) string {
	if val, ok := ctx.Value(localeKey).(string); ok {
		return val
	}
	return ""
}
