package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessorsDefaultToZeroValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ActorID(ctx))
	assert.Empty(t, ActorRole(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsReturnInjectedValues(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	ctx := WithActorID(context.Background(), "gov-1")
	ctx = WithActorRole(ctx, "governo")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, "gov-1", ActorID(ctx))
	assert.Equal(t, "governo", ActorRole(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.True(t, fixed.Equal(Now(ctx)))
}
