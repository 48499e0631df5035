package browser

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL enforces the fetcher's URL policy before any navigation.
func (f *Fetcher) ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %s", raw)
	}

	if parsed.Scheme == "file" && !f.cfg.AllowFileURLs {
		f.logger.Warn().Str("url", raw).Msg("file URL blocked")
		return fmt.Errorf("file:// URLs are not allowed")
	}
	if parsed.Scheme != "file" && parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	if isLocalhost(parsed) && !f.cfg.AllowLocalhostURLs {
		f.logger.Warn().Str("url", raw).Msg("localhost URL blocked")
		return fmt.Errorf("localhost URLs are not allowed")
	}

	host := parsed.Hostname()
	for _, blocked := range f.cfg.BlockedDomains {
		if matchesDomain(host, blocked) {
			f.logger.Warn().Str("url", raw).Str("domain", blocked).Msg("blocked domain")
			return fmt.Errorf("domain is blocked: %s", host)
		}
	}
	if len(f.cfg.AllowedDomains) > 0 {
		for _, allowed := range f.cfg.AllowedDomains {
			if matchesDomain(host, allowed) {
				return nil
			}
		}
		f.logger.Warn().Str("url", raw).Msg("domain not in allow list")
		return fmt.Errorf("domain is not allowed: %s", host)
	}
	return nil
}

func isLocalhost(u *url.URL) bool {
	host := u.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// matchesDomain reports whether host equals domain or is a subdomain of it.
func matchesDomain(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
