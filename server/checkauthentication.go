package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/codeaholics/skylith/assoc"
	"github.com/codeaholics/skylith/message"
	"github.com/codeaholics/skylith/xcrypto"
)

// handleCheckAuthentication implements the check_authentication mode
// (spec §4.6.5): stateless verification, on behalf of an RP, of an id_res
// assertion it received directly (not through its own association). The
// response nonce is consumed exactly once, and the association used must
// be private (minted for exactly this assertion) and unexpired.
func (s *Server) handleCheckAuthentication(w http.ResponseWriter, r *http.Request, fields message.Fields) {
	valid := s.verifyCheckAuthentication(r, fields, s.now())
	s.writeDirectOK(w, message.Fields{
		"ns":       message.NS,
		"is_valid": formatBool(valid),
	})
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (s *Server) verifyCheckAuthentication(r *http.Request, fields message.Fields, now time.Time) bool {
	handle := fields["assoc_handle"]
	respNonceID := fields["response_nonce"]
	if handle == "" || respNonceID == "" {
		return false
	}

	n, err := s.nonces.GetAndDelete(r.Context(), respNonceID)
	if err != nil {
		return false
	}
	if n.Expired(now) {
		return false
	}

	a, err := s.assocs.Get(r.Context(), handle)
	if errors.Is(err, assoc.ErrNotFound) {
		return false
	}
	if err != nil {
		return false
	}
	if !a.Private {
		return false
	}
	if a.Expired(now) {
		_ = s.assocs.Delete(r.Context(), handle)
		return false
	}

	return verifySignature(fields, a)
}

func verifySignature(fields message.Fields, a assoc.Association) bool {
	if fields["signed"] == "" {
		return false
	}
	signedFields := strings.Split(fields["signed"], ",")

	verifyFields := fields.Clone()
	verifyFields["mode"] = "id_res"

	body, _, err := message.ToForm(verifyFields, signedFields)
	if err != nil {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(fields["sig"])
	if err != nil {
		return false
	}

	ok, err := xcrypto.Verify(a.Algorithm, a.Secret, []byte(body), sig)
	if err != nil {
		return false
	}
	return ok
}
