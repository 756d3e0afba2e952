package server

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/codeaholics/skylith/assoc"
	"github.com/codeaholics/skylith/message"
	"github.com/codeaholics/skylith/xcrypto"
)

// handleAssociate implements the associate mode (spec §4.6.2): it
// establishes a shared association, either in the clear (no-encryption,
// TLS-only) or via a Diffie-Hellman key exchange, and returns it as a
// direct response.
func (s *Server) handleAssociate(w http.ResponseWriter, r *http.Request, fields message.Fields) {
	sessionType := fields["session_type"]
	if sessionType == "" {
		sessionType = "no-encryption"
	}
	assocType := fields["assoc_type"]
	if assocType == "" {
		assocType = xcrypto.HMACSHA1
	}

	switch sessionType {
	case "no-encryption":
		s.handleAssociateNoEncryption(w, r, assocType)
	case "DH-SHA1":
		s.handleAssociateDH(w, r, fields, assocType, xcrypto.HMACSHA1)
	case "DH-SHA256":
		s.handleAssociateDH(w, r, fields, assocType, xcrypto.HMACSHA256)
	default:
		s.writeUnsupportedType(w, "DH-SHA256", xcrypto.HMACSHA256)
	}
}

func (s *Server) handleAssociateNoEncryption(w http.ResponseWriter, r *http.Request, assocType string) {
	if !isSecureRequest(r) {
		s.writeUnsupportedType(w, "DH-SHA256", xcrypto.HMACSHA256)
		return
	}
	if assocType != xcrypto.HMACSHA1 && assocType != xcrypto.HMACSHA256 {
		s.writeUnsupportedType(w, "no-encryption", xcrypto.HMACSHA256)
		return
	}

	macKey, err := xcrypto.NewMACKey(assocType)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}
	a, err := s.newSharedAssociation(r, assocType, macKey)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}

	s.writeDirectOK(w, message.Fields{
		"ns":           message.NS,
		"assoc_type":   assocType,
		"session_type": "no-encryption",
		"assoc_handle": a.Handle,
		"expires_in":   expiresIn(s.assocExpiry),
		"mac_key":      base64.StdEncoding.EncodeToString(macKey),
	})
}

func (s *Server) handleAssociateDH(w http.ResponseWriter, r *http.Request, fields message.Fields, assocType, sessionHashAlgo string) {
	if assocType != sessionHashAlgo {
		// The XOR derivation requires the session hash and the MAC key to
		// be the same length; pairing DH-SHA1 with HMAC-SHA256 (or vice
		// versa) can never produce a usable enc_mac_key.
		s.writeUnsupportedType(w, sessionTypeName(sessionHashAlgo), sessionHashAlgo)
		return
	}

	modulus := xcrypto.DefaultModulus()
	if raw := fields["dh_modulus"]; raw != "" {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			s.sendAssociateError(w, "invalid dh_modulus")
			return
		}
		modulus = xcrypto.DecodeBigInt(b)
	}
	generator := xcrypto.DefaultGenerator()
	if raw := fields["dh_gen"]; raw != "" {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			s.sendAssociateError(w, "invalid dh_gen")
			return
		}
		generator = xcrypto.DecodeBigInt(b)
	}

	rawPub, err := base64.StdEncoding.DecodeString(fields["dh_consumer_public"])
	if err != nil {
		s.sendAssociateError(w, "invalid dh_consumer_public")
		return
	}
	consumerPublic := xcrypto.DecodeBigInt(rawPub)

	serverKP, err := xcrypto.GenerateKeyPair(modulus, generator)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}
	sharedSecret := xcrypto.SharedSecret(serverKP, consumerPublic, modulus)

	macKey, err := xcrypto.NewMACKey(assocType)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}
	encMacKey, err := xcrypto.DeriveEncMACKey(sessionHashAlgo, sharedSecret, macKey)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}

	a, err := s.newSharedAssociation(r, assocType, macKey)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}

	s.writeDirectOK(w, message.Fields{
		"ns":               message.NS,
		"assoc_type":       assocType,
		"session_type":     sessionTypeName(sessionHashAlgo),
		"assoc_handle":     a.Handle,
		"expires_in":       expiresIn(s.assocExpiry),
		"dh_server_public": base64.StdEncoding.EncodeToString(xcrypto.EncodeBigInt(serverKP.Public)),
		"enc_mac_key":      base64.StdEncoding.EncodeToString(encMacKey),
	})
}

func sessionTypeName(hashAlgo string) string {
	if hashAlgo == xcrypto.HMACSHA256 {
		return "DH-SHA256"
	}
	return "DH-SHA1"
}

func (s *Server) newSharedAssociation(r *http.Request, assocType string, macKey []byte) (assoc.Association, error) {
	now := s.now()
	handle, err := assoc.NewHandle()
	if err != nil {
		return assoc.Association{}, err
	}
	a := assoc.Association{
		Handle:    handle,
		Algorithm: assocType,
		Secret:    macKey,
		Expiry:    now.Add(s.assocExpiry),
		Private:   false,
		Created:   now,
	}
	if err := s.assocs.Put(r.Context(), a); err != nil {
		return assoc.Association{}, err
	}
	return a, nil
}

func (s *Server) sendAssociateError(w http.ResponseWriter, msg string) {
	s.writeDirectError(w, msg, "", nil)
}

func expiresIn(d time.Duration) string {
	return strconv.Itoa(int(d.Seconds()))
}
