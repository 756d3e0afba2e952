package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/codeaholics/skylith/discovery"
	"github.com/codeaholics/skylith/message"
)

const maxDirectBodyBytes = 1 << 20 // 1 MiB; direct requests are small KV forms.

// serve is the core request dispatcher, reached only for requests at the
// engine's mount path (Mount has already filtered on path).
func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.serveGet(w, r)
	case http.MethodPost:
		s.servePost(w, r)
	default:
		nextOf(r).ServeHTTP(w, r)
	}
}

func (s *Server) serveGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	hasOpenIDParams := false
	for k := range query {
		if strings.HasPrefix(k, "openid.") {
			hasOpenIDParams = true
			break
		}
	}
	if !hasOpenIDParams {
		s.serveDiscovery(w, r)
		return
	}

	fields, err := message.FromQuery(query)
	if err != nil {
		nextOf(r).ServeHTTP(w, r)
		return
	}

	switch fields.Mode() {
	case "checkid_setup":
		s.handleCheckID(w, r, fields, true)
	case "checkid_immediate":
		s.handleCheckID(w, r, fields, false)
	default:
		s.sendProtocolError(w, r, fields, "unsupported indirect mode "+fields.Mode())
	}
}

func (s *Server) servePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDirectBodyBytes+1))
	if err != nil {
		s.writeDirectError(w, "error reading request body", "", nil)
		return
	}
	if len(body) > maxDirectBodyBytes {
		s.writeDirectError(w, "request body too large", "", nil)
		return
	}

	fields, err := message.FromBody(body, r.Header.Get("Content-Type"))
	if err != nil {
		nextOf(r).ServeHTTP(w, r)
		return
	}

	switch fields.Mode() {
	case "associate":
		s.handleAssociate(w, r, fields)
	case "check_authentication":
		s.handleCheckAuthentication(w, r, fields)
	case "checkid_setup":
		s.handleCheckID(w, r, fields, true)
	case "checkid_immediate":
		s.handleCheckID(w, r, fields, false)
	default:
		s.writeDirectError(w, "unsupported mode "+fields.Mode(), "", nil)
	}
}

// serveDiscovery responds to GETs that carry no openid.* parameters: the
// mount root itself (OP identifier discovery) or ?u=<identity> (claimed
// identifier discovery), per spec §4.7.
func (s *Server) serveDiscovery(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("u")
	accept := r.Header.Get("Accept")

	switch {
	case acceptsMediaType(accept, "application/xrds+xml"):
		body, err := discovery.RenderXRDS(s.endpoint.String(), identity)
		if err != nil {
			s.renderInternalError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/xrds+xml")
		_, _ = w.Write(body)
	case accept == "" || acceptsMediaType(accept, "text/html") || acceptsMediaType(accept, "*/*"):
		w.Header().Set("Content-Type", "text/html;charset=utf-8")
		if err := discovery.RenderHTML(w, s.endpoint.String(), identity); err != nil {
			s.renderInternalError(w, r, err)
		}
	default:
		http.Error(w, "Not Acceptable", http.StatusNotAcceptable)
	}
}

func acceptsMediaType(accept, mediaType string) bool {
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if semi := strings.IndexByte(part, ';'); semi >= 0 {
			part = strings.TrimSpace(part[:semi])
		}
		if strings.EqualFold(part, mediaType) {
			return true
		}
	}
	return false
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
