// Package realm validates OpenID 2.0 realms and return_to URLs, including
// wildcard-host ("*.example.com") realm semantics.
package realm

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that returnTo is an acceptable return_to value for
// realm, per the OpenID 2.0 realm/return_to compatibility rules. returnTo
// may be empty, in which case only realm itself is validated.
func Validate(realmStr, returnTo string) error {
	realmURL, wildcard, err := parseRealm(realmStr)
	if err != nil {
		return err
	}

	if returnTo == "" {
		return nil
	}

	returnToURL, err := url.Parse(returnTo)
	if err != nil {
		return fmt.Errorf("realm: invalid return_to: %w", err)
	}
	if returnToURL.Scheme == "" || returnToURL.Host == "" {
		return fmt.Errorf("realm: return_to is not an absolute URL")
	}

	if realmURL.Scheme != returnToURL.Scheme {
		return fmt.Errorf("realm: return_to scheme %q does not match realm scheme %q", returnToURL.Scheme, realmURL.Scheme)
	}
	if portOf(realmURL) != portOf(returnToURL) {
		return fmt.Errorf("realm: return_to port does not match realm port")
	}

	realmPath := normalizePath(realmURL.Path)
	returnPath := normalizePath(returnToURL.Path)
	prefix := strings.TrimSuffix(realmPath, "/") + "/"
	if returnPath != realmPath && !strings.HasPrefix(returnPath, prefix) {
		return fmt.Errorf("realm: return_to path %q is not within realm path %q", returnToURL.Path, realmURL.Path)
	}

	realmHost := hostOf(realmURL)
	returnHost := hostOf(returnToURL)
	if !wildcard && returnHost == realmHost {
		return nil
	}
	if wildcard && strings.HasSuffix(returnHost, "."+realmHost) {
		return nil
	}
	return fmt.Errorf("realm: return_to host %q is not covered by realm host %q", returnHost, realmHost)
}

// parseRealm parses and checks realm, reporting whether it uses
// wildcard-host syntax ("*.example.com"); a wildcard realm is returned
// with the "*." prefix stripped from its host.
func parseRealm(realmStr string) (u *url.URL, wildcard bool, err error) {
	parsed, err := url.Parse(realmStr)
	if err != nil {
		return nil, false, fmt.Errorf("realm: invalid realm: %w", err)
	}
	if parsed.Fragment != "" {
		return nil, false, fmt.Errorf("realm: realm must not contain a fragment")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, false, fmt.Errorf("realm: realm scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, false, fmt.Errorf("realm: realm has no host")
	}

	host := parsed.Host
	if strings.HasPrefix(host, "*.") {
		wildcard = true
		stripped := *parsed
		stripped.Host = host[len("*."):]
		parsed = &stripped
	}

	return parsed, wildcard, nil
}

func portOf(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch u.Scheme {
	case "https":
		return "443"
	default:
		return "80"
	}
}

func hostOf(u *url.URL) string {
	return u.Hostname()
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
