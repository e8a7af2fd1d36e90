package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// validateSiteURL checks that rawURL is an absolute http or https URL with a host.
// Other schemes are rejected so file:// or javascript: links scraped from pages are never followed.
func validateSiteURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidSiteURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSiteURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: must use http:// or https:// protocol", ErrInvalidSiteURL)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidSiteURL)
	}

	return u, nil
}

// siteKey normalises a site URL to the host used for provider lookup.
// "https://WWW.Example.com:443/movies" -> "example.com"
func siteKey(rawURL string) (string, error) {
	u, err := validateSiteURL(rawURL)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www."), nil
}
