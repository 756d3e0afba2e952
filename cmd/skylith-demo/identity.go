package main

import (
	"net/http"
	"strings"

	"github.com/codeaholics/skylith/server"
)

// demoAttributes is the canned set of Attribute Exchange values this demo
// can answer, keyed by AX type URI.
var demoAttributes = map[string][]string{
	"http://axschema.org/contact/email":    {"demo-user@example.com"},
	"http://axschema.org/namePerson":       {"Demo User"},
	"http://axschema.org/namePerson/first": {"Demo"},
	"http://axschema.org/namePerson/last":  {"User"},
}

// autoApprove completes every checkid request as identity, with no
// interactive login step. It answers any requested Attribute Exchange
// attribute this demo happens to know.
func autoApprove(engine *server.Server, w http.ResponseWriter, r *http.Request, ctx *server.Context, identity string) {
	ax := server.AXValues{}
	if ctx.AX != nil {
		for k, typeURI := range ctx.AX.Fields {
			if !strings.HasPrefix(k, "type.") {
				continue
			}
			if values, ok := demoAttributes[typeURI]; ok {
				ax[typeURI] = values
			}
		}
	}

	engine.CompleteAuth(w, r, server.AuthResponse{
		Context:  ctx,
		Identity: identity,
		AX:       ax,
	})
}
