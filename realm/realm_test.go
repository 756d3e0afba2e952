package realm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateExactHost(t *testing.T) {
	require.NoError(t, Validate("http://localhost/", "http://localhost/here"))
}

func TestValidateRootRealmAllowsAnyPath(t *testing.T) {
	require.NoError(t, Validate("http://localhost/", "http://localhost/deeply/nested/cb"))
}

func TestValidatePathPrefix(t *testing.T) {
	require.NoError(t, Validate("http://example.com/app", "http://example.com/app/cb"))
	require.NoError(t, Validate("http://example.com/app", "http://example.com/app"))
}

func TestValidateRejectsUnrelatedPath(t *testing.T) {
	require.Error(t, Validate("http://example.com/app", "http://example.com/other/cb"))
}

func TestValidateRejectsSchemeMismatch(t *testing.T) {
	require.Error(t, Validate("http://example.com/", "https://example.com/cb"))
}

func TestValidateRejectsPortMismatch(t *testing.T) {
	require.Error(t, Validate("http://example.com:8080/", "http://example.com/cb"))
}

func TestValidateWildcardRealm(t *testing.T) {
	require.NoError(t, Validate("http://*.example.com/app", "http://a.example.com/app/cb"))
	require.Error(t, Validate("http://*.example.com/app", "http://example.com/app/cb"))
	require.Error(t, Validate("http://*.example.com/app", "http://evil.com/app/cb"))
}

func TestValidateWildcardRealmRejectsApex(t *testing.T) {
	// A subdomain-wildcard realm must not authorize its own registrable
	// apex: "*.example.com" covers "a.example.com", not "example.com".
	require.Error(t, Validate("http://*.example.com/app", "http://example.com/app/cb"))
}

func TestValidateRejectsRealmFragment(t *testing.T) {
	require.Error(t, Validate("http://example.com/#frag", ""))
}

func TestValidateRejectsNonHTTPRealm(t *testing.T) {
	require.Error(t, Validate("ftp://example.com/", ""))
}

func TestValidateEmptyReturnToOnlyValidatesRealm(t *testing.T) {
	require.NoError(t, Validate("http://example.com/", ""))
}
