// Package endpoint parses "ip:port" strings into connectable address and
// port pairs and discovers the local IPv4 address of the host.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidEndpoint is returned when an endpoint string is blank, lacks the
// ":" separator or carries a port outside [0, 65535].
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// ErrNoLocalAddress is returned by LocalIPv4 when the host has no
// non-loopback IPv4 address.
var ErrNoLocalAddress = errors.New("unable to find local IP address")

// MaxPort is the largest valid TCP port.
const MaxPort = 65535

// Endpoint is an address and port pair identifying a TCP listening or
// connecting target. Address is used as given; host names are not resolved.
type Endpoint struct {
	Address string
	Port    int
}

// String returns the endpoint in "address:port" form, bracketing IPv6
// literals.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// Parse splits s at ":" and validates both parts. Segments are trimmed of
// surrounding white space; anything after a second ":" is ignored.
//
// Parameters:
//   - s: Endpoint text such as "127.0.0.1:12345"
//
// Returns:
//   - The parsed Endpoint
//   - An error wrapping ErrInvalidEndpoint when s is malformed
func Parse(s string) (Endpoint, error) {
	if strings.TrimSpace(s) == "" {
		return Endpoint{}, fmt.Errorf("%w: address and port cannot be empty", ErrInvalidEndpoint)
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return Endpoint{}, fmt.Errorf("%w: %q, expected `ip:port`", ErrInvalidEndpoint, s)
	}

	port, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || port < 0 || port > MaxPort {
		return Endpoint{}, fmt.Errorf("%w: port must be a number between 0 and %d", ErrInvalidEndpoint, MaxPort)
	}

	return Endpoint{Address: strings.TrimSpace(parts[0]), Port: port}, nil
}

// LocalIPv4 returns the first non-loopback IPv4 address assigned to one of
// the host's interfaces.
func LocalIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoLocalAddress, err)
	}

	return firstIPv4(addrs)
}

func firstIPv4(addrs []net.Addr) (string, error) {
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}

		if ip == nil || ip.IsLoopback() {
			continue
		}

		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}

	return "", ErrNoLocalAddress
}
