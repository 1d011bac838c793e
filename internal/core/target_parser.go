package core

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nimda/routeros-brute/internal/interfaces"
	zlog "github.com/rs/zerolog/log"
)

// Target is a router address with an optional explicit port
type Target struct {
	Host string
	// Port is 0 when the target did not name one; each service then uses its own default.
	Port int
}

// String returns host:port, or the bare host when no port was given
func (t Target) String() string {
	if t.Port == 0 {
		return t.Host
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseTarget parses a target specification.
// Accepted forms:
//
//	"192.168.88.1"
//	"192.168.88.1:8728"
//	"router.lan"
//	"[fe80::1]:8728"
//	"fe80::1"
func ParseTarget(spec string) (Target, error) {
	spec = strings.TrimSpace(spec)
	zlog.Trace().Str("target", spec).Msg("Parsing target")

	if spec == "" {
		return Target{}, &interfaces.ValidationError{Field: "target", Message: "target cannot be empty"}
	}

	// bare IPv6 address without brackets
	if ip := net.ParseIP(spec); ip != nil {
		return Target{Host: spec}, nil
	}

	if strings.HasPrefix(spec, "[") || strings.Count(spec, ":") == 1 {
		host, portStr, err := net.SplitHostPort(spec)
		if err != nil {
			if strings.HasPrefix(spec, "[") && strings.HasSuffix(spec, "]") {
				return parseHost(strings.Trim(spec, "[]"))
			}
			return Target{}, &interfaces.ValidationError{Field: "target", Message: fmt.Sprintf("invalid target %q: %v", spec, err)}
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Target{}, &interfaces.ValidationError{Field: "target", Message: fmt.Sprintf("invalid port in target %q", spec)}
		}
		if err := interfaces.ValidatePort(port); err != nil {
			return Target{}, err
		}
		t, err := parseHost(host)
		if err != nil {
			return Target{}, err
		}
		t.Port = port
		return t, nil
	}

	if strings.Contains(spec, ":") {
		return Target{}, &interfaces.ValidationError{Field: "target", Message: fmt.Sprintf("invalid target %q", spec)}
	}
	return parseHost(spec)
}

func parseHost(host string) (Target, error) {
	if err := interfaces.ValidateTarget(host); err != nil {
		return Target{}, err
	}
	return Target{Host: host}, nil
}
