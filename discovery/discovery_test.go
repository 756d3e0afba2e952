package discovery

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderXRDSServer(t *testing.T) {
	out, err := RenderXRDS("http://op.example/openid", "")
	require.NoError(t, err)
	require.Contains(t, string(out), "<Type>"+ServerType+"</Type>")
	require.Contains(t, string(out), "<URI>http://op.example/openid</URI>")
	require.Contains(t, string(out), "<Type>"+AXServiceType+"</Type>")
}

func TestRenderXRDSSignon(t *testing.T) {
	out, err := RenderXRDS("http://op.example/openid", "charlie")
	require.NoError(t, err)
	require.Contains(t, string(out), "<Type>"+SignonType+"</Type>")
	require.Contains(t, string(out), "<URI>http://op.example/openid?u=charlie</URI>")
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "http://op.example/openid", ""))
	require.Contains(t, buf.String(), `<link rel="openid2.provider" href="http://op.example/openid">`)
	require.NotContains(t, buf.String(), "openid2.local_id")
}

func TestRenderHTMLWithIdentity(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "http://op.example/openid", "charlie"))
	require.Contains(t, buf.String(), `<link rel="openid2.local_id" href="http://op.example/openid?u=charlie">`)
}
