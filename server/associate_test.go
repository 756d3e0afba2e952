package server

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeaholics/skylith/xcrypto"
)

func parseDirectForm(t *testing.T, body string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		idx := strings.IndexByte(line, ':')
		require.GreaterOrEqual(t, idx, 0)
		out[line[:idx]] = line[idx+1:]
	}
	return out
}

func TestAssociateDHRoundTrip(t *testing.T) {
	s := newTestServer(t, func(http.ResponseWriter, *http.Request, bool, *Context) {})

	clientKP, err := xcrypto.GenerateKeyPair(xcrypto.DefaultModulus(), xcrypto.DefaultGenerator())
	require.NoError(t, err)
	clientPub := base64.StdEncoding.EncodeToString(xcrypto.EncodeBigInt(clientKP.Public))

	body := "openid.ns:http://specs.openid.net/auth/2.0\n" +
		"openid.mode:associate\n" +
		"openid.session_type:DH-SHA256\n" +
		"openid.assoc_type:HMAC-SHA256\n" +
		"openid.dh_consumer_public:" + clientPub + "\n"

	req := httptest.NewRequest(http.MethodPost, "http://op.example/openid", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	fields := parseDirectForm(t, rec.Body.String())
	require.Equal(t, "DH-SHA256", fields["session_type"])
	require.Equal(t, "HMAC-SHA256", fields["assoc_type"])
	require.NotEmpty(t, fields["assoc_handle"])

	serverPubBytes, err := base64.StdEncoding.DecodeString(fields["dh_server_public"])
	require.NoError(t, err)
	serverPub := xcrypto.DecodeBigInt(serverPubBytes)

	sharedSecret := xcrypto.SharedSecret(clientKP, serverPub, xcrypto.DefaultModulus())

	encMacKey, err := base64.StdEncoding.DecodeString(fields["enc_mac_key"])
	require.NoError(t, err)
	macKey, err := xcrypto.RecoverMACKey(xcrypto.HMACSHA256, sharedSecret, encMacKey)
	require.NoError(t, err)
	require.Len(t, macKey, 32)
}

func TestAssociateMismatchedTypesRejected(t *testing.T) {
	s := newTestServer(t, func(http.ResponseWriter, *http.Request, bool, *Context) {})

	body := "openid.ns:http://specs.openid.net/auth/2.0\n" +
		"openid.mode:associate\n" +
		"openid.session_type:DH-SHA1\n" +
		"openid.assoc_type:HMAC-SHA256\n" +
		"openid.dh_consumer_public:AA==\n"

	req := httptest.NewRequest(http.MethodPost, "http://op.example/openid", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unsupported-type")
}
