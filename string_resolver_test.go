package cfddns_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Travis-Britz/cfddns"
)

func TestFromString(t *testing.T) {
	r, err := cfddns.FromString("::ffff:203.0.113.5")
	require.NoError(t, err)
	addr, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", addr.String())

	_, err = cfddns.FromString("203.0.113")
	assert.Error(t, err)
}

func TestInterfaceResolverUnknownInterface(t *testing.T) {
	_, err := cfddns.InterfaceResolver("does-not-exist0").Resolve(context.Background())
	assert.ErrorIs(t, err, cfddns.ErrNoAddress)
}
