//go:build windows

package dnscfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasSearchListContent(t *testing.T) {
	assert.True(t, hasSearchListContent("corp.example"))
	assert.True(t, hasSearchListContent("a"))
	assert.True(t, hasSearchListContent("  x  "))
	assert.True(t, hasSearchListContent("my-domain"))

	assert.False(t, hasSearchListContent(""))
	assert.False(t, hasSearchListContent("   "))
	assert.False(t, hasSearchListContent(",,,"))
	assert.False(t, hasSearchListContent("\t \n"))
}

func TestAppendSearchList(t *testing.T) {
	got, err := appendSearchList("corp.example", "vpn.example")
	require.NoError(t, err)
	assert.Equal(t, "corp.example,vpn.example", got)

	got, err = appendSearchList("", "vpn.example")
	require.NoError(t, err)
	assert.Equal(t, "vpn.example", got)
}

func TestAppendSearchListCapacity(t *testing.T) {
	long := strings.Repeat("a", searchListCap-2)
	_, err := appendSearchList(long, "b")
	assert.Error(t, err)

	// Exactly at capacity (length + terminator == cap) still fits.
	ok := strings.Repeat("a", searchListCap-1)
	got, err := appendSearchList("", ok)
	require.NoError(t, err)
	assert.Equal(t, ok, got)
}

func TestSpliceSearchList(t *testing.T) {
	for _, tc := range []struct {
		list, domains, want string
		found               bool
	}{
		{"corp.example,vpn.example", "vpn.example", "corp.example", true},
		{"vpn.example,corp.example", "vpn.example", "corp.example", true},
		{"a,vpn.example,b", "vpn.example", "a,b", true},
		{"vpn.example", "vpn.example", "", true},
		{"corp.example", "vpn.example", "corp.example", false},
	} {
		got, found := spliceSearchList(tc.list, tc.domains)
		assert.Equal(t, tc.want, got, "list=%q domains=%q", tc.list, tc.domains)
		assert.Equal(t, tc.found, found, "list=%q domains=%q", tc.list, tc.domains)
	}
}

func TestFormatServerList(t *testing.T) {
	addrs := make([][16]byte, 4)
	copy(addrs[0][:], []byte{10, 8, 0, 1})
	copy(addrs[1][:], []byte{10, 8, 0, 2})
	assert.Equal(t, "10.8.0.1,10.8.0.2", formatServerList(2, addrs, 2))
	assert.Equal(t, "10.8.0.1", formatServerList(2, addrs, 1))

	addrs[0] = [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	assert.Equal(t, "2001:db8::1", formatServerList(23, addrs, 1))
}
