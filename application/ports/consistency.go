package ports

import "context"

type freshReadsKey struct{}

// WithFreshReads marks ctx so repository reads go to the store, skipping any
// cache in front of it. Engine operations diff against state read this way.
func WithFreshReads(ctx context.Context) context.Context {
	if FreshReads(ctx) {
		return ctx
	}
	return context.WithValue(ctx, freshReadsKey{}, true)
}

// FreshReads reports whether ctx was marked by WithFreshReads
func FreshReads(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshReadsKey{}).(bool)
	return fresh
}
