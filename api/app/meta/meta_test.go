package meta

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sepetli/kimlik/registration"
	"github.com/steinfletcher/apitest"
	"go.uber.org/zap"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(_ context.Context) error {
	return f.err
}

func TestHealthzEndpoint(t *testing.T) {
	pending := registration.NewMemoryStore(0)
	m := NewMetaRessource(zap.NewNop(), &fakePinger{}, pending)
	apitest.New().
		HandlerFunc(m.healthz).
		Get("/healthz").
		Expect(t).
		Body(`{"status":"ok","database":"up","pending_store":"up","pending_registrations":0}`).
		Status(http.StatusOK).
		End()
}

func TestHealthzEndpointDeadDatabase(t *testing.T) {
	pending := registration.NewMemoryStore(0)
	m := NewMetaRessource(zap.NewNop(), &fakePinger{err: errors.New("gone")}, pending)
	apitest.New().
		HandlerFunc(m.healthz).
		Get("/healthz").
		Expect(t).
		Body(`{"status":"unhealthy","database":"down","pending_store":"up","pending_registrations":0}`).
		Status(http.StatusServiceUnavailable).
		End()
}
