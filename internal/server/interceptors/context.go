package interceptors

import "context"

type contextKey struct{ name string }

var subjectKey = contextKey{"subject"}

// WithSubject returns a context carrying the authenticated username taken from the access token.
func WithSubject(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, subjectKey, username)
}

// GetSubject returns the authenticated username and true if set; otherwise "", false.
func GetSubject(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectKey).(string)
	return v, ok && v != ""
}
