package testutil

import (
	"context"
	"time"

	"licita/pkg/requestcontext"
)

// At returns a context whose clock is fixed at ms milliseconds since epoch.
func At(ms int64) context.Context {
	return requestcontext.WithTime(context.Background(), time.UnixMilli(ms))
}

// AsActor adds the authenticated actor and party type to ctx, as the auth
// middleware does.
func AsActor(ctx context.Context, actorID, role string) context.Context {
	ctx = requestcontext.WithActorID(ctx, actorID)
	return requestcontext.WithActorRole(ctx, role)
}
