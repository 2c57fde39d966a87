package shared

import (
	"fmt"
	"net"
	"strconv"
)

// ParseEndpoint parses "host:port". IPv6 hosts are written in brackets.
// An empty host or "*" means all interfaces and comes back empty.
func ParseEndpoint(s string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, parsingError(s)
	}
	if host == "*" {
		host = ""
	}

	port, err = strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, parsingError(s)
	}
	return host, port, nil
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %q: format should be 'host:port' with port in [1, 65535]", s)
}
