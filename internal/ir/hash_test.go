package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDigestStable(t *testing.T) {
	a := Object{"name": String("Ada"), "manager": Link("User:2")}
	b := Object{"manager": Link("User:2"), "name": String("Ada")}

	assert.Equal(t, MustRecordDigest(a), MustRecordDigest(b))
	assert.Len(t, MustRecordDigest(a), 64)
}

func TestRecordDigestDistinguishesLinkFromString(t *testing.T) {
	asLink := Object{"ref": Link("User:1")}
	asString := Object{"ref": String("User:1")}

	assert.NotEqual(t, MustRecordDigest(asLink), MustRecordDigest(asString))
}

func TestSnapshotDigest(t *testing.T) {
	snap := map[string]Object{
		"User:1": {"name": String("Ada")},
		"User:2": {"name": String("Bob")},
	}

	d1, err := SnapshotDigest(snap)
	require.NoError(t, err)

	snap["User:2"] = Object{"name": String("Eve")}
	d2, err := SnapshotDigest(snap)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t,
		hashWithDomain(DomainRecord, data),
		hashWithDomain(DomainSnapshot, data),
	)
}
