package common

import "context"

type actorKey struct{}

// Actor identifies the authenticated merchant behind a request.
type Actor struct {
	Subject string
	Shop    string
}

// WithActor binds the authenticated merchant to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the merchant bound by WithActor. Storefront requests have
// none.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.Subject != ""
}
