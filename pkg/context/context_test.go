package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := SetUserEmail(SetUserID(context.Background(), "op-1"), "op@example.com")

	actor := GetActor(ctx)
	assert.Equal(t, Actor{ID: "op-1", Email: "op@example.com"}, actor)

	detached := WithActor(context.Background(), actor)
	assert.Equal(t, "op-1", GetUserID(detached))
	assert.Equal(t, "op@example.com", GetUserEmail(detached))
}

func TestMissingValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetUserID(ctx))
	assert.Nil(t, GetUserRoles(ctx))
}
