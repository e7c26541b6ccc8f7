package blocker

import "errors"

// Configuration errors, raised when a rule is constructed.
var (
	ErrConflictingDomains  = errors.New("if-domain and unless-domain are mutually exclusive")
	ErrConflictingTopURLs  = errors.New("if-top-url and unless-top-url are mutually exclusive")
	ErrTooManyLoadTypes    = errors.New("load-type accepts at most two values")
	ErrUnknownLoadType     = errors.New("unknown load-type")
	ErrUnknownResourceType = errors.New("unknown resource-type")
	ErrInvalidURLFilter    = errors.New("invalid url-filter")
	ErrUnknownActionType   = errors.New("unknown action type")
	ErrMissingSelector     = errors.New("css-display-none requires a selector")
	ErrInvalidSelector     = errors.New("invalid css selector")
)

// ErrMalformedURL is returned by CheckURL when the request URL cannot be
// parsed even after the scheme repair.
var ErrMalformedURL = errors.New("malformed request url")
