package fetcher

import "errors"

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid URL")
	// ErrPrivateIP is returned when the host resolves to a private address.
	ErrPrivateIP = errors.New("URL resolves to a private IP address")
	// ErrTooManyRedirects is returned when MaxRedirects is exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrBodyTooLarge is returned when the page exceeds MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrTimeout is returned when the page did not load within Timeout.
	ErrTimeout = errors.New("content fetch timed out")
	// ErrReadabilityFailed is returned when no article text could be extracted.
	ErrReadabilityFailed = errors.New("readability extraction failed")
)
