package scraper

import "errors"

var (
	// ErrNotImplemented indicates no provider is configured for a site
	ErrNotImplemented = errors.New("scraper not implemented for site")
	// ErrNoSources indicates the source list is empty or could not be fetched
	ErrNoSources = errors.New("no movie source sites available")
	// ErrBlocked indicates an outbound request matched the ad blocklist
	ErrBlocked = errors.New("request blocked by ad filter")
	// ErrInvalidSiteURL indicates a site or page URL is not an absolute http(s) URL
	ErrInvalidSiteURL = errors.New("invalid site URL")
	// ErrNoLink indicates a provider found no download link
	ErrNoLink = errors.New("no download link found")
	// ErrProviderFailed indicates an external provider command failed
	ErrProviderFailed = errors.New("provider command failed")
)
