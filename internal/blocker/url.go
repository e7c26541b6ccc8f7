package blocker

import (
	"fmt"
	"net/url"
	"strings"
)

// endpoint is the (scheme, host, port) triple of a URL. An empty port means
// the scheme default.
type endpoint struct {
	scheme string
	host   string
	port   string
}

func (e endpoint) sameOrigin(o endpoint) bool {
	return e.scheme == o.scheme && e.host == o.host && e.port == o.port
}

// defaultHTTPPort reports whether the endpoint targets port 80 implicitly or explicitly
func (e endpoint) defaultHTTPPort() bool {
	return e.port == "" || e.port == "80"
}

// parseEndpoint splits rawURL into scheme, host and port. URLs that do not
// parse are retried with their scheme swapped for https, which lets custom
// schemes with unusual syntax through; the original scheme is kept.
func parseEndpoint(rawURL string) (endpoint, error) {
	u, err := url.Parse(rawURL)
	if err == nil {
		return endpointOf(u), nil
	}

	scheme, rest, found := strings.Cut(rawURL, ":")
	if !found {
		return endpoint{}, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	repaired, rerr := url.Parse("https:" + rest)
	if rerr != nil {
		return endpoint{}, fmt.Errorf("%w: %v", ErrMalformedURL, rerr)
	}
	e := endpointOf(repaired)
	e.scheme = strings.ToLower(scheme)
	return e, nil
}

func endpointOf(u *url.URL) endpoint {
	return endpoint{
		scheme: strings.ToLower(u.Scheme),
		host:   u.Hostname(),
		port:   u.Port(),
	}
}

// httpsVariant rewrites only the scheme of an http URL
func httpsVariant(rawURL string) string {
	if len(rawURL) >= len("http://") && strings.EqualFold(rawURL[:len("http://")], "http://") {
		return "https://" + rawURL[len("http://"):]
	}
	return rawURL
}
