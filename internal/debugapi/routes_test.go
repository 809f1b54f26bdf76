package debugapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"pokerclient/internal/client"
	"pokerclient/internal/identity"
	"pokerclient/internal/transport"
)

type stubViewer struct{ v client.View }

func (s stubViewer) View() client.View { return s.v }

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(SetupRoutes(stubViewer{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestState(t *testing.T) {
	srv := httptest.NewServer(SetupRoutes(stubViewer{v: client.View{
		Connection:      transport.StateConnected,
		ConnectionState: transport.StateConnected.String(),
		Identity:        &identity.Identity{PlayerID: "p1", DisplayName: "Alice", Chips: 1000},
		GameLifecycle:   "uninitialized",
	}}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Connection string `json:"connection"`
		Identity   struct {
			PlayerID string `json:"playerId"`
			Chips    int    `json:"chips"`
		} `json:"identity"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "connected", body.Connection)
	require.Equal(t, "p1", body.Identity.PlayerID)
	require.Equal(t, 1000, body.Identity.Chips)
}
