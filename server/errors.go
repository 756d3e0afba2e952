package server

import (
	"net/http"
	"net/url"

	"github.com/codeaholics/skylith/message"
)

// sendProtocolError reports a malformed or invalid request. It redirects
// to return_to with an error response when return_to is present and
// well-formed (spec §4.8's indirect error), and falls back to a direct
// 400 otherwise, since there is nowhere to redirect to.
func (s *Server) sendProtocolError(w http.ResponseWriter, r *http.Request, fields message.Fields, msg string) {
	returnTo := fields["return_to"]
	if returnTo == "" {
		s.writeDirectError(w, msg, "", nil)
		return
	}
	if _, err := url.ParseRequestURI(returnTo); err != nil {
		s.writeDirectError(w, msg, "", nil)
		return
	}
	resp := message.Fields{"ns": message.NS, "mode": "error", "error": msg}
	redirectURL, err := message.ToIndirectURL(returnTo, resp)
	if err != nil {
		s.writeDirectError(w, msg, "", nil)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// writeDirectError writes a direct-communication error response (spec
// §4.8): key-value form, 400 status, optional error_code and hint fields.
func (s *Server) writeDirectError(w http.ResponseWriter, msg, code string, hints message.Fields) {
	fields := message.Fields{"error": msg}
	if code != "" {
		fields["error_code"] = code
	}
	for k, v := range hints {
		fields[k] = v
	}
	body, _, _ := message.ToForm(fields, nil)
	w.Header().Set("Content-Type", "text/plain;charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(body))
}

// writeUnsupportedType writes the associate "unsupported-type" error,
// hinting at a session/assoc type combination the caller can retry with.
func (s *Server) writeUnsupportedType(w http.ResponseWriter, fallbackSession, fallbackAssoc string) {
	s.writeDirectError(w, "unsupported association type", "unsupported-type", message.Fields{
		"session_type": fallbackSession,
		"assoc_type":   fallbackAssoc,
	})
}

// writeDirectOK writes a successful direct-communication response: 200,
// key-value form body.
func (s *Server) writeDirectOK(w http.ResponseWriter, fields message.Fields) {
	body, _, _ := message.ToForm(fields, nil)
	w.Header().Set("Content-Type", "text/plain;charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) renderInternalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "internal error", "err", err, "request_id", requestID(r.Context()))
	http.Error(w, "internal error", http.StatusInternalServerError)
}
