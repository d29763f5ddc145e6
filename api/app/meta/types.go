package meta

import "net/http"

type healthResponse struct {
	Status               string `json:"status"`
	Database             string `json:"database"`
	PendingStore         string `json:"pending_store"`
	PendingRegistrations int    `json:"pending_registrations"`
}

func (*healthResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}
