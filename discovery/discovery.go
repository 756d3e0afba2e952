// Package discovery renders the OpenID 2.0 discovery documents (XRDS and
// HTML) the OP serves for its own endpoint and for user-specific
// endpoints, per spec §4.7.
package discovery

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html/template"
	"io"
)

// ServerType is the XRDS service type for the OP's own endpoint.
const ServerType = "http://specs.openid.net/auth/2.0/server"

// SignonType is the XRDS service type for a user-specific endpoint.
const SignonType = "http://specs.openid.net/auth/2.0/signon"

// AXServiceType is advertised alongside the auth service type so RPs know
// the OP supports Attribute Exchange 1.0 fetch.
const AXServiceType = "http://openid.net/srv/ax/1.0"

type xrdsDoc struct {
	XMLName   xml.Name `xml:"xrds:XRDS"`
	XmlnsXRDS string   `xml:"xmlns:xrds,attr"`
	Xmlns     string   `xml:"xmlns,attr"`
	XRD       xrd      `xml:"XRD"`
}

type xrd struct {
	Xmlns   string  `xml:"xmlns,attr"`
	Service service `xml:"Service"`
}

type service struct {
	Types []string `xml:"Type"`
	URI   string   `xml:"URI"`
}

// RenderXRDS builds the XRDS discovery document for endpoint. When
// identity is non-empty, the document advertises the signon service type
// with endpoint?u=<identity>; otherwise it advertises the bare server
// service type.
func RenderXRDS(endpoint, identity string) ([]byte, error) {
	svcType := ServerType
	uri := endpoint
	if identity != "" {
		svcType = SignonType
		uri = endpoint + "?u=" + identity
	}

	doc := xrdsDoc{
		XmlnsXRDS: "xri://$xrds",
		Xmlns:     "xri://$xrd*($v*2.0)",
		XRD: xrd{
			Xmlns: "xri://$xrd*($v*2.0)",
			Service: service{
				Types: []string{svcType, AXServiceType},
				URI:   uri,
			},
		},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("discovery: encoding XRDS: %w", err)
	}
	return buf.Bytes(), nil
}

var htmlTmpl = template.Must(template.New("discovery").Parse(`<!DOCTYPE html>
<html>
<head>
<link rel="openid2.provider" href="{{.Endpoint}}">
{{- if .Identity}}
<link rel="openid2.local_id" href="{{.Endpoint}}?u={{.Identity}}">
{{- end}}
</head>
<body>
<p>This is an OpenID 2.0 provider endpoint.</p>
</body>
</html>
`))

type htmlData struct {
	Endpoint string
	Identity string
}

// RenderHTML writes the HTML discovery document for endpoint to w. When
// identity is non-empty, an additional openid2.local_id link is emitted.
func RenderHTML(w io.Writer, endpoint, identity string) error {
	return htmlTmpl.Execute(w, htmlData{Endpoint: endpoint, Identity: identity})
}
