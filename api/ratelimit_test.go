package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func requestFrom(remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.RemoteAddr = remoteAddr
	return r
}

func TestClientAddressStripsPort(t *testing.T) {
	assert.Equal(t, "203.0.113.5", clientAddress(requestFrom("203.0.113.5:54312")))
}

func TestClientAddressStableAcrossConnections(t *testing.T) {
	first := clientAddress(requestFrom("203.0.113.5:54312"))
	second := clientAddress(requestFrom("203.0.113.5:61023"))
	assert.Equal(t, first, second)
}

func TestClientAddressIPv6(t *testing.T) {
	assert.Equal(t, "2001:db8::1", clientAddress(requestFrom("[2001:db8::1]:443")))
}

func TestClientAddressAlreadyBare(t *testing.T) {
	// RealIP rewrote RemoteAddr from a proxy header, no port present
	assert.Equal(t, "203.0.113.5", clientAddress(requestFrom("203.0.113.5")))
}
