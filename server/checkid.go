package server

import (
	"net/http"

	"github.com/codeaholics/skylith/message"
	"github.com/codeaholics/skylith/realm"
)

// handleCheckID handles checkid_setup (interactive=true) and
// checkid_immediate (interactive=false), per spec §4.6.3. It validates
// the request's realm/return_to and any AX fetch_request extension, then
// transfers control to the configured auth handler: the engine writes no
// response of its own on this path.
func (s *Server) handleCheckID(w http.ResponseWriter, r *http.Request, fields message.Fields, interactive bool) {
	returnTo := fields["return_to"]
	realmStr := fields["realm"]

	if returnTo == "" && realmStr == "" {
		s.sendProtocolError(w, r, fields, "return_to or realm is required")
		return
	}

	// If the RP didn't supply a realm, OpenID 2.0 falls back to return_to
	// itself as the trust root -- the realm check then degenerates to an
	// exact self-match, which passes for any http(s) return_to without a
	// fragment.
	if realmStr == "" {
		realmStr = returnTo
	}

	if err := realm.Validate(realmStr, returnTo); err != nil {
		s.sendProtocolError(w, r, fields, err.Error())
		return
	}

	var ax *message.Extension
	if ext, ok := message.GetExtension(fields, message.AXNamespace); ok {
		if ext.Fields["mode"] != "fetch_request" {
			s.sendProtocolError(w, r, fields, "unsupported AX mode "+ext.Fields["mode"])
			return
		}
		ax = ext
	}

	ctx := &Context{
		Interactive: interactive,
		Request:     fields,
		AX:          ax,
	}
	s.checkAuth(w, r, interactive, ctx)
}
