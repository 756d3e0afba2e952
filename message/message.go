// Package message implements the OpenID 2.0 wire codec: parsing the
// openid.* key-value form used by direct (POST) requests and responses,
// and the openid.* query parameters used by indirect (browser) requests
// and responses, plus Attribute Exchange 1.0 extension alias resolution.
package message

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// NS is the OpenID Authentication 2.0 namespace URI.
const NS = "http://specs.openid.net/auth/2.0"

// AXNamespace is the Attribute Exchange 1.0 fetch namespace URI.
const AXNamespace = "http://openid.net/srv/ax/1.0"

// ErrNotOpenID is returned by FromBody/FromQuery when the message does not
// declare (or declares the wrong) openid.ns, or when a direct request body
// could not be parsed at all. Callers treat this as "not our protocol",
// not as an internal error.
var ErrNotOpenID = errors.New("message: not an OpenID 2.0 message")

// ErrMissingSignedField is returned by ToForm when an explicit field order
// names a field that is absent from the message being serialized.
var ErrMissingSignedField = errors.New("message: field named in signed list is missing from message")

// Fields is a bare-name (no "openid." prefix) key/value mapping. Extension
// fields retain their dotted sub-keys, e.g. "ax2.type.email".
type Fields map[string]string

// NS returns the openid.ns value, or "" if absent.
func (f Fields) NS() string { return f["ns"] }

// Mode returns the openid.mode value, or "" if absent.
func (f Fields) Mode() string { return f["mode"] }

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	c := make(Fields, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}

const formContentType = "application/x-www-form-urlencoded"

// FromBody parses a direct request's key-value-form POST body: one field
// per line, "<key>:<value>\n", keys stripped of their leading "openid."
// prefix. An unrecognized content type or a body that fails to declare
// openid.ns == NS is reported via ErrNotOpenID; the partially parsed
// fields are still returned so callers can include them in diagnostics.
func FromBody(body []byte, contentType string) (Fields, error) {
	fields := Fields{}

	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	if mediaType != formContentType {
		return fields, ErrNotOpenID
	}

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimPrefix(line[:idx], "openid.")
		fields[key] = line[idx+1:]
	}

	if fields.NS() != NS {
		return fields, ErrNotOpenID
	}
	return fields, nil
}

// FromQuery parses an indirect request's openid.* query parameters.
func FromQuery(values url.Values) (Fields, error) {
	fields := Fields{}
	for key, vals := range values {
		if !strings.HasPrefix(key, "openid.") {
			continue
		}
		if len(vals) == 0 {
			continue
		}
		fields[strings.TrimPrefix(key, "openid.")] = vals[0]
	}

	if fields.NS() != NS {
		return fields, ErrNotOpenID
	}
	return fields, nil
}

// ToForm serializes fields as direct key-value form: "<key>:<value>\n" per
// line, no "openid." prefix on the keys. When order is non-nil, exactly
// those fields are emitted in exactly that order; a name in order that is
// absent from fields is a hard error (ErrMissingSignedField) rather than
// being silently emitted empty — see the Open Question resolution in
// DESIGN.md. When order is nil, all fields are emitted sorted by key for
// determinism. Returns the serialized body and the field names emitted, in
// emission order (used as the "signed" parameter by callers).
func ToForm(fields Fields, order []string) (body string, emitted []string, err error) {
	keys := order
	if keys == nil {
		keys = make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	var b strings.Builder
	emitted = make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrMissingSignedField, k)
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte('\n')
		emitted = append(emitted, k)
	}
	return b.String(), emitted, nil
}

// ToIndirectURL builds an indirect response/request URL: baseURL with every
// field in fields added as an "openid.<key>" query parameter.
func ToIndirectURL(baseURL string, fields Fields) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("message: invalid base URL: %w", err)
	}
	q := u.Query()
	for k, v := range fields {
		q.Set("openid."+k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Extension is a resolved Attribute Exchange namespace alias and its
// fields, keyed by the remainder of each extension key after "<alias>.".
type Extension struct {
	Alias  string
	Fields map[string]string
}

// GetExtension finds the alias a request declared for nsURI (via
// "ns.<a>") and collects every "<a>.*" key into the returned Extension. It
// reports false if no alias maps to nsURI.
func GetExtension(fields Fields, nsURI string) (*Extension, bool) {
	var alias string
	found := false
	for k, v := range fields {
		if strings.HasPrefix(k, "ns.") && v == nsURI {
			alias = strings.TrimPrefix(k, "ns.")
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}

	prefix := alias + "."
	ext := &Extension{Alias: alias, Fields: map[string]string{}}
	for k, v := range fields {
		if strings.HasPrefix(k, prefix) {
			ext.Fields[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return ext, true
}
