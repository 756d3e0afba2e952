package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codeaholics/skylith/assoc"
	"github.com/codeaholics/skylith/message"
	"github.com/codeaholics/skylith/nonce"
	"github.com/codeaholics/skylith/xcrypto"
)

// AuthHandler authenticates the end user for an in-flight checkid_setup or
// checkid_immediate request. It is responsible for eventually calling
// Server.CompleteAuth (success) or Server.RejectAuth (cancel/setup
// needed); the engine transfers control to it without writing a response
// of its own and does not time it out (spec §5).
type AuthHandler func(w http.ResponseWriter, r *http.Request, interactive bool, ctx *Context)

// Context is the opaque token the engine hands to the auth handler and
// expects back, unchanged, via CompleteAuth/RejectAuth. The engine never
// persists it; a caller that needs to resume later (after an interactive
// login step, say) is responsible for keeping it alive -- typically in
// the end user's session.
type Context struct {
	// Interactive reports whether the request was checkid_setup (true) or
	// checkid_immediate (false, no user interaction permitted).
	Interactive bool
	// Request holds every openid.* field from the inbound request, so a
	// handler can inspect fields the engine doesn't otherwise surface.
	Request message.Fields
	// AX is the parsed Attribute Exchange fetch_request extension, or nil
	// if the request didn't carry one.
	AX *message.Extension
}

// AXValues maps an Attribute Exchange type URI to the value(s) the auth
// handler supplies for it. A single value is represented as a one-element
// slice.
type AXValues map[string][]string

// AuthResponse is what the auth handler supplies to CompleteAuth after
// successfully authenticating the end user.
type AuthResponse struct {
	// Context must be the same *Context the engine handed the handler.
	Context *Context
	// Identity is the local identifier asserted to the RP; it is rendered
	// into claimed_id/identity as ProviderEndpoint?u=<identity>.
	Identity string
	// AX supplies values for any requested Attribute Exchange attributes
	// the handler can answer. For attributes the RP asked for but that are
	// absent here, the response still echoes the type but carries no value
	// or count field.
	AX AXValues
}

// CompleteAuth finishes a positive assertion for ctx (obtained from a
// prior AuthHandler invocation), signs it with the resolved association,
// and redirects the end user's browser back to the RP's return_to with an
// id_res response (spec §4.6.4).
func (s *Server) CompleteAuth(w http.ResponseWriter, r *http.Request, ar AuthResponse) {
	ctx := ar.Context
	fields := ctx.Request
	now := s.now()

	respNonceID, err := nonce.NewID(now)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}

	response := message.Fields{
		"ns":             message.NS,
		"mode":           "id_res",
		"op_endpoint":    s.endpoint.String(),
		"return_to":      fields["return_to"],
		"response_nonce": respNonceID,
	}
	identityURL := s.endpoint.String() + "?u=" + url.QueryEscape(ar.Identity)
	response["claimed_id"] = identityURL
	response["identity"] = identityURL

	signedOrder := []string{"mode", "op_endpoint", "claimed_id", "identity", "return_to", "response_nonce"}

	if ctx.AX != nil {
		alias := ctx.AX.Alias
		nsKey := "ns." + alias
		response[nsKey] = message.AXNamespace
		response[alias+".mode"] = "fetch_response"
		signedOrder = append(signedOrder, nsKey, alias+".mode")

		var attrAliases []string
		for k := range ctx.AX.Fields {
			if strings.HasPrefix(k, "type.") {
				attrAliases = append(attrAliases, strings.TrimPrefix(k, "type."))
			}
		}
		sort.Strings(attrAliases)

		for _, attrAlias := range attrAliases {
			typeURI := ctx.AX.Fields["type."+attrAlias]

			// Echo the type for every attribute the RP requested, whether or
			// not the handler could answer it (spec §4.6.4/§8).
			typeKey := alias + ".type." + attrAlias
			response[typeKey] = typeURI
			signedOrder = append(signedOrder, typeKey)

			values := ar.AX[typeURI]
			if len(values) == 0 {
				continue
			}

			if len(values) == 1 {
				valueKey := alias + ".value." + attrAlias
				response[valueKey] = values[0]
				signedOrder = append(signedOrder, valueKey)
				continue
			}

			countKey := alias + ".count." + attrAlias
			response[countKey] = strconv.Itoa(len(values))
			signedOrder = append(signedOrder, countKey)
			for i, v := range values {
				valueKey := alias + ".value." + attrAlias + "." + strconv.Itoa(i+1)
				response[valueKey] = v
				signedOrder = append(signedOrder, valueKey)
			}
		}
	}

	assocRecord, invalidateHandle, err := s.resolveAssociation(r.Context(), fields["assoc_handle"], now)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}
	if invalidateHandle != "" {
		response["invalidate_handle"] = invalidateHandle
	}
	response["assoc_handle"] = assocRecord.Handle
	signedOrder = append(signedOrder, "assoc_handle")

	body, signedFields, err := message.ToForm(response, signedOrder)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}
	sig, err := xcrypto.Sign(assocRecord.Algorithm, assocRecord.Secret, []byte(body))
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}
	response["sig"] = base64.StdEncoding.EncodeToString(sig)
	response["signed"] = strings.Join(signedFields, ",")

	if err := s.nonces.Put(r.Context(), nonce.Nonce{ID: respNonceID, Expiry: now.Add(s.nonceExpiry)}); err != nil {
		s.renderInternalError(w, r, err)
		return
	}

	redirectURL, err := message.ToIndirectURL(fields["return_to"], response)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// RejectAuth declines ctx: a "cancel" response for an interactive request
// the user backed out of, or "setup_needed" for a checkid_immediate
// request the engine cannot satisfy without user interaction.
func (s *Server) RejectAuth(w http.ResponseWriter, r *http.Request, ctx *Context) {
	mode := "setup_needed"
	if ctx.Interactive {
		mode = "cancel"
	}
	response := message.Fields{"ns": message.NS, "mode": mode}
	redirectURL, err := message.ToIndirectURL(ctx.Request["return_to"], response)
	if err != nil {
		s.renderInternalError(w, r, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// resolveAssociation implements the association-resolution rule of spec
// §4.6.4.1: reuse the RP's shared association if it names one and it's
// still valid, otherwise mint a private, single-use association and
// report the stale handle (if any) as invalidate_handle.
func (s *Server) resolveAssociation(ctx context.Context, handle string, now time.Time) (assoc.Association, string, error) {
	if handle != "" {
		a, err := s.assocs.Get(ctx, handle)
		switch {
		case errors.Is(err, assoc.ErrNotFound):
			return s.newPrivateAssociation(ctx, now, handle)
		case err != nil:
			return assoc.Association{}, "", err
		case a.Expired(now):
			_ = s.assocs.Delete(ctx, handle)
			return s.newPrivateAssociation(ctx, now, handle)
		default:
			return a, "", nil
		}
	}
	return s.newPrivateAssociation(ctx, now, "")
}

func (s *Server) newPrivateAssociation(ctx context.Context, now time.Time, invalidateHandle string) (assoc.Association, string, error) {
	newHandle, err := assoc.NewHandle()
	if err != nil {
		return assoc.Association{}, "", err
	}
	macKey, err := xcrypto.NewMACKey(xcrypto.HMACSHA256)
	if err != nil {
		return assoc.Association{}, "", err
	}
	priv := assoc.Association{
		Handle:    newHandle,
		Algorithm: xcrypto.HMACSHA256,
		Secret:    macKey,
		Expiry:    now.Add(s.assocExpiry),
		Private:   true,
		Created:   now,
	}
	if err := s.assocs.Put(ctx, priv); err != nil {
		return assoc.Association{}, "", err
	}
	return priv, invalidateHandle, nil
}
