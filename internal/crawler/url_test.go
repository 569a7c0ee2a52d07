package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "HTTP://Example.COM", want: "http://example.com/"},
		{in: "http://example.com:80/about#team", want: "http://example.com/about"},
		{in: "https://example.com:443/?b=2&a=1", want: "https://example.com/?a=1&b=2"},
		{in: "https://example.com/Contact", want: "https://example.com/Contact"},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	_, err := NormalizeURL("http://%zz")
	require.Error(t, err)
}

func TestWithScheme(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://a.com", WithScheme("a.com"))
	require.Equal(t, "http://www.a.com/x", WithScheme(" www.a.com/x "))
	require.Equal(t, "https://a.com", WithScheme("https://a.com"))
	require.Equal(t, "HTTP://A.COM", WithScheme("HTTP://A.COM"))
	require.Equal(t, "http://httpbin.org", WithScheme("httpbin.org"))
	require.Equal(t, "http://httpie.io/docs", WithScheme("httpie.io/docs"))
	require.Equal(t, "http://https-everywhere.net", WithScheme("https-everywhere.net"))
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "http://www.Example.com/about", want: "example.com"},
		{in: "https://shop.example.co.uk", want: "example.co.uk"},
		{in: "http://127.0.0.1:8080/", want: "127.0.0.1"},
		{in: "http://localhost:3000", want: "localhost"},
	}
	for _, tt := range tests {
		got, err := RegistrableDomain(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	_, err := RegistrableDomain("http://")
	require.Error(t, err)
}
