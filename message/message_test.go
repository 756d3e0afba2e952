package message

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromQuery(t *testing.T) {
	values := url.Values{
		"openid.ns":         {NS},
		"openid.mode":       {"checkid_setup"},
		"openid.realm":      {"http://localhost/"},
		"unrelated":         {"ignored"},
		"openid.ax2.mode":   {"fetch_request"},
		"openid.ns.ax2":     {AXNamespace},
	}

	fields, err := FromQuery(values)
	require.NoError(t, err)
	require.Equal(t, "checkid_setup", fields.Mode())
	require.Equal(t, "http://localhost/", fields["realm"])
	require.Equal(t, "fetch_request", fields["ax2.mode"])
	_, ok := fields["unrelated"]
	require.False(t, ok)
}

func TestFromQueryNotOpenID(t *testing.T) {
	_, err := FromQuery(url.Values{"foo": {"bar"}})
	require.ErrorIs(t, err, ErrNotOpenID)
}

func TestFromBody(t *testing.T) {
	body := "openid.ns:" + NS + "\nopenid.mode:associate\nopenid.session_type:DH-SHA256\n"
	fields, err := FromBody([]byte(body), "application/x-www-form-urlencoded")
	require.NoError(t, err)
	require.Equal(t, "associate", fields.Mode())
	require.Equal(t, "DH-SHA256", fields["session_type"])
}

func TestFromBodyWrongContentType(t *testing.T) {
	_, err := FromBody([]byte("openid.ns:"+NS), "text/plain")
	require.ErrorIs(t, err, ErrNotOpenID)
}

func TestFromBodyMissingNS(t *testing.T) {
	_, err := FromBody([]byte("openid.mode:associate\n"), "application/x-www-form-urlencoded")
	require.ErrorIs(t, err, ErrNotOpenID)
}

func TestToFormExplicitOrder(t *testing.T) {
	fields := Fields{
		"mode":   "id_res",
		"sig":    "abc123",
		"signed": "mode,sig",
	}
	order := []string{"mode", "sig", "signed"}

	body, emitted, err := ToForm(fields, order)
	require.NoError(t, err)
	require.Equal(t, order, emitted)
	require.Equal(t, "mode:id_res\nsig:abc123\nsigned:mode,sig\n", body)
}

func TestToFormMissingFieldIsError(t *testing.T) {
	fields := Fields{"mode": "id_res"}
	_, _, err := ToForm(fields, []string{"mode", "sig"})
	require.ErrorIs(t, err, ErrMissingSignedField)
}

func TestToFormDefaultOrderSorted(t *testing.T) {
	fields := Fields{"b": "2", "a": "1"}
	body, emitted, err := ToForm(fields, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, emitted)
	require.Equal(t, "a:1\nb:2\n", body)
}

func TestToIndirectURL(t *testing.T) {
	out, err := ToIndirectURL("http://localhost/here", Fields{"mode": "id_res"})
	require.NoError(t, err)
	u, err := url.Parse(out)
	require.NoError(t, err)
	require.Equal(t, "id_res", u.Query().Get("openid.mode"))
}

func TestGetExtension(t *testing.T) {
	fields := Fields{
		"ns.ax2":        AXNamespace,
		"ax2.mode":      "fetch_request",
		"ax2.type.email": "http://axschema.org/contact/email",
		"ax2.type.first": "http://axschema.org/namePerson/first",
		"other.mode":    "ignored",
	}

	ext, ok := GetExtension(fields, AXNamespace)
	require.True(t, ok)
	require.Equal(t, "ax2", ext.Alias)
	require.Equal(t, "fetch_request", ext.Fields["mode"])
	require.Equal(t, "http://axschema.org/contact/email", ext.Fields["type.email"])
	_, ok = ext.Fields["mode.other"]
	require.False(t, ok)
}

func TestGetExtensionAbsent(t *testing.T) {
	_, ok := GetExtension(Fields{"mode": "checkid_setup"}, AXNamespace)
	require.False(t, ok)
}
