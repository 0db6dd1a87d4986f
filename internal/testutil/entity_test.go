package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/linkgraph/internal/ir"
)

func TestEntity(t *testing.T) {
	user := Entity("User", "1", ir.Object{"name": ir.String("Ada")})

	assert.Equal(t, ir.Object{
		"type": ir.String("User"),
		"id":   ir.String("1"),
		"name": ir.String("Ada"),
	}, user)

	key, ok := ir.NewCodec().KeyOf(user)
	assert.True(t, ok)
	assert.Equal(t, "User:1", key)
}

func TestEntityIdentityWins(t *testing.T) {
	e := Entity("User", "1", ir.Object{"id": ir.String("other")})
	assert.Equal(t, ir.String("1"), e["id"])
}
