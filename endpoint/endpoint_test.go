package endpoint

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("address and port", func(t *testing.T) {
		e, err := Parse("127.0.0.1:12345")
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", e.Address)
		assert.Equal(t, 12345, e.Port)
		assert.Equal(t, "127.0.0.1:12345", e.String())
	})

	t.Run("segments are trimmed", func(t *testing.T) {
		e, err := Parse(" 10.0.0.1 : 80 ")
		require.NoError(t, err)
		assert.Equal(t, Endpoint{Address: "10.0.0.1", Port: 80}, e)
	})

	t.Run("port bounds are inclusive", func(t *testing.T) {
		e, err := Parse("127.0.0.1:0")
		require.NoError(t, err)
		assert.Equal(t, 0, e.Port)

		e, err = Parse("127.0.0.1:65535")
		require.NoError(t, err)
		assert.Equal(t, 65535, e.Port)
	})

	t.Run("address is used as-is", func(t *testing.T) {
		e, err := Parse("localhost:8080")
		require.NoError(t, err)
		assert.Equal(t, "localhost", e.Address)
	})

	t.Run("extra segments are ignored", func(t *testing.T) {
		e, err := Parse("127.0.0.1:8080:9")
		require.NoError(t, err)
		assert.Equal(t, 8080, e.Port)
	})
}

func TestParse_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"127.0.0.1",
		"127.0.0.1:99999",
		"127.0.0.1:-1",
		"127.0.0.1:abc",
		"127.0.0.1:",
		"127.0.0.1:0x10",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
}

func TestFirstIPv4(t *testing.T) {
	t.Run("skips loopback and IPv6", func(t *testing.T) {
		addrs := []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPAddr{IP: net.ParseIP("192.168.1.20")},
		}
		got, err := firstIPv4(addrs)
		require.NoError(t, err)
		assert.Equal(t, "192.168.1.20", got)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := firstIPv4([]net.Addr{&net.IPAddr{IP: net.ParseIP("::1")}})
		assert.ErrorIs(t, err, ErrNoLocalAddress)
	})
}
