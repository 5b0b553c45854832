package whitelist

import (
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Checker decides which URLs and senders are never sent to the classifier:
// reserved browser schemes and trusted domains
type Checker struct {
	schemes []string
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(schemes, domains []string, logger *zap.Logger) *Checker {
	normalizedSchemes := normalize(schemes, ":/")
	normalizedDomains := normalize(domains, ".")

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized whitelist checker",
			zap.Strings("domains", normalizedDomains),
			zap.Strings("schemes", normalizedSchemes))
	}

	return &Checker{
		schemes: normalizedSchemes,
		domains: normalizedDomains,
		logger:  logger,
	}
}

func normalize(values []string, trim string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.Trim(strings.ToLower(strings.TrimSpace(v)), trim)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ExcludeURL reports whether rawURL must not be classified. Empty and
// unparsable URLs, URLs without a host on a non-reserved scheme, reserved
// schemes and trusted hosts are all excluded.
func (c *Checker) ExcludeURL(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		c.debug("Unparsable URL excluded", zap.String("url", rawURL))
		return true
	}

	scheme := strings.ToLower(u.Scheme)
	for _, reserved := range c.schemes {
		if scheme == reserved {
			c.debug("Reserved scheme excluded", zap.String("url", rawURL), zap.String("scheme", scheme))
			return true
		}
	}

	host := u.Hostname()
	if host == "" {
		return true
	}
	return c.IsWhitelisted(host)
}

// ExcludeSender reports whether the sender's domain is trusted
func (c *Checker) ExcludeSender(sender string) bool {
	parts := strings.Split(extractAddress(sender), "@")
	if len(parts) != 2 {
		return false
	}
	return c.IsWhitelisted(parts[1])
}

// IsWhitelisted checks if host equals or is a subdomain of a trusted domain
func (c *Checker) IsWhitelisted(host string) bool {
	if len(c.domains) == 0 {
		return false
	}

	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, whitelisted := range c.domains {
		if host == whitelisted || strings.HasSuffix(host, "."+whitelisted) {
			c.debug("Domain is whitelisted", zap.String("domain", host))
			return true
		}
	}

	return false
}

func (c *Checker) debug(msg string, fields ...zap.Field) {
	if c.logger != nil {
		c.logger.Debug(msg, fields...)
	}
}

// extractAddress pulls the address out of forms like "Name <user@example.com>"
func extractAddress(s string) string {
	start := strings.LastIndex(s, "<")
	end := strings.LastIndex(s, ">")
	if start >= 0 && end > start {
		return strings.TrimSpace(s[start+1 : end])
	}
	return strings.TrimSpace(s)
}
