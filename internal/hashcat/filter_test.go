package hashcat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func names(hs []HashType) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Name)
	}
	return out
}

func TestFilterPrefixBeforeSubstring(t *testing.T) {
	got := names(Filter("sha1"))
	require.NotEmpty(t, got)

	// Every prefix match precedes every substring-only match.
	lastPrefix := -1
	firstSubstring := len(got)
	for i, n := range got {
		if strings.HasPrefix(strings.ToLower(n), "sha1") {
			lastPrefix = i
		} else if i < firstSubstring {
			firstSubstring = i
		}
	}
	require.Less(t, lastPrefix, firstSubstring)
}

func TestFilterSubstringOnlyQuery(t *testing.T) {
	// "5" never begins a name, so everything returned is a substring match,
	// in catalog order.
	got := names(Filter("5"))
	require.Contains(t, got, "MD5")
	require.NotContains(t, got, "SHA1")

	var md5At, sha256At int
	for i, n := range got {
		if n == "MD5" {
			md5At = i
		}
		if n == "SHA2-256" {
			sha256At = i
		}
	}
	require.Less(t, md5At, sha256At, "relative catalog order must be preserved")
}

func TestFilterNoDuplicates(t *testing.T) {
	got := names(Filter("md5"))
	seen := make(map[string]int)
	for _, n := range got {
		seen[n]++
	}
	for n, count := range seen {
		require.Equal(t, 1, count, "duplicate entry %q", n)
	}
}

func TestFilterNeverExceedsCeiling(t *testing.T) {
	require.LessOrEqual(t, len(Filter("")), 100)
	require.LessOrEqual(t, len(Filter("a")), 100)
}

func TestFilterCaseInsensitive(t *testing.T) {
	require.Equal(t, names(Filter("NTLM")), names(Filter("ntlm")))
	got := names(Filter("ntlm"))
	require.Contains(t, got, "NTLM")
}

func TestByModeValue(t *testing.T) {
	h, ok := ByModeValue("1000")
	require.True(t, ok)
	require.Equal(t, "NTLM", h.Name)

	_, ok = ByModeValue("not-a-mode")
	require.False(t, ok)

	_, ok = ByModeValue("999999")
	require.False(t, ok)
}
