package discover

import (
	"net/url"
	"strings"
)

// Valid reports whether href is a link the overlay may open and the
// preloader may fetch: an absolute, well-formed http or https URL that is
// not the page itself. Fragment-only differences count as the same page.
func Valid(href, pageURL string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}

	u, err := url.Parse(href)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	if pageURL == "" {
		return true
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return true
	}
	return !samePage(u, page)
}

// SameOrigin reports whether two URLs share scheme, host and port
func SameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return origin(ua) == origin(ub)
}

// samePage compares two URLs ignoring fragments
func samePage(a, b *url.URL) bool {
	ca, cb := *a, *b
	ca.Fragment, ca.RawFragment = "", ""
	cb.Fragment, cb.RawFragment = "", ""
	return origin(&ca) == origin(&cb) && ca.RequestURI() == cb.RequestURI()
}

// origin returns the normalised scheme://host:port of u
func origin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		switch scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return scheme + "://" + host + ":" + port
}
