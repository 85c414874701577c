package validation

import (
	"net"
	"net/url"
	"slices"
	"strings"

	apperrors "github.com/Suryanandx/2d-code-verifier/internal/errors"
)

// URLValidator checks image URLs submitted for remote verification
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
	blockPrivate   bool
}

// NewURLValidator accepts any http or https host
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{},
	}
}

// NewURLValidatorWithOptions restricts schemes and hosts. A host entry of
// the form "*.example.com" matches any subdomain of example.com.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			normalized = append(normalized, h)
		}
	}
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   normalized,
	}
}

// BlockPrivateNetworks rejects loopback, link-local and private IP literals
func (v *URLValidator) BlockPrivateNetworks() *URLValidator {
	v.blockPrivate = true
	return v
}

// ValidateImageURL returns a validation AppError when imageURL may not be fetched
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	host := strings.ToLower(parsedURL.Hostname())
	if host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if !v.isHostAllowed(host) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	if v.blockPrivate && isPrivateHost(host) {
		return apperrors.NewValidationError("URL host is a private address", nil)
	}

	return nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	return slices.Contains(v.allowedSchemes, strings.ToLower(scheme))
}

// isHostAllowed reports true when no host restrictions are set
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}

func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
