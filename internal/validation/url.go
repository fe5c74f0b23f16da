// Package validation checks user supplied values before they reach the
// network or the shell.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ProxyURL parses the target of the development server proxy. Only
// absolute http and https URLs with a host are accepted.
func ProxyURL(raw string) (*url.URL, error) {
	if strings.ContainsAny(raw, " \n\r\t") {
		return nil, fmt.Errorf("URL contains whitespace")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q (only http/https allowed)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("URL must have a valid hostname")
	}

	return parsed, nil
}
