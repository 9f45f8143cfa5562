package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/finsight/finsight/internal/config"
)

// resolveServeAddr picks the listen address: an explicit --addr flag wins,
// otherwise the configured host and port are joined.
func resolveServeAddr(cfg *config.Config, flagAddr string) (string, error) {
	addr := flagAddr
	if addr == "" {
		addr = net.JoinHostPort(cfg.ServerHost, strconv.Itoa(cfg.ServerPort))
	}
	if err := validateAddr(addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return addr, nil
}

// validateAddr validates the server address format.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}

	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				return fmt.Errorf("invalid host: %s", host)
			}
		}
	}

	if port == "" {
		return fmt.Errorf("port is required")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if portNum < 0 || portNum > 65535 {
		return fmt.Errorf("port must be 0-65535 (0 = auto-assign), got %d", portNum)
	}

	return nil
}
