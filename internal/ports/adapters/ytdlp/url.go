package ytdlp

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateSourceURL accepts absolute http(s) URLs with a host and no
// userinfo. When allowedHosts is non-empty the host must match one of them
// or be a subdomain of one.
func ValidateSourceURL(raw string, allowedHosts []string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid URL %q: absolute URL with host is required", raw)
	}
	if u.User != nil {
		return fmt.Errorf("invalid URL %q: userinfo is not allowed", raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("invalid URL %q: http or https is required", raw)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("invalid URL %q: host is required", raw)
	}

	allowed := normalizeAllowedHosts(allowedHosts)
	if len(allowed) == 0 {
		return nil
	}
	for h := range allowed {
		if host == h || strings.HasSuffix(host, "."+h) {
			return nil
		}
	}
	return fmt.Errorf("invalid URL %q: host %q is not in ALLOWED_SOURCE_HOSTS", raw, host)
}

func normalizeAllowedHosts(allowedHosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if i := strings.Index(v, ":"); i >= 0 {
			v = v[:i]
		}
		out[v] = struct{}{}
	}
	return out
}
