package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"parlor/internal/adapters/signal"
	"parlor/internal/app"
	"parlor/internal/config"
)

func TestICEServersFromConfig(t *testing.T) {
	req := require.New(t)

	cfg := &config.Config{
		STUNURLs: []string{"stun:stun.example.org:3478"},
		TURNURL:  "turn:turn.example.org:3478",
		TURNUser: "user",
		TURNPass: "pass",
	}
	servers := iceServers(cfg)
	req.Len(servers, 2)
	req.Equal([]string{"stun:stun.example.org:3478"}, servers[0].URLs)
	req.Equal("user", servers[1].Username)
	req.Equal("pass", servers[1].Credential)

	// No TURN configured means no credential-bearing entry at all.
	servers = iceServers(&config.Config{STUNURLs: cfg.STUNURLs})
	req.Len(servers, 1)
}

func TestRouterEndpoints(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "test-secret",
		STUNURLs:   []string{"stun:stun.example.org:3478"},
	}
	rooms := app.NewRooms(time.Minute)
	rooms.Join("ABCDEFGH", "u1")
	rooms.Join("ABCDEFGH", "u2")

	ctl := signal.NewController(nil, nil, nil, nil, cfg)
	srv := httptest.NewServer(SetupRouter(context.Background(), cfg, ctl, rooms))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/rooms")
	req.NoError(err)
	defer resp.Body.Close()
	var list []app.RoomInfo
	req.NoError(json.NewDecoder(resp.Body).Decode(&list))
	req.Len(list, 1)
	req.Equal(2, list[0].MemberCount)

	// The client-token cookie is minted on first contact.
	found := false
	for _, c := range resp.Cookies() {
		if c.Name == "ct" && c.Value != "" {
			found = true
		}
	}
	req.True(found, "ct cookie issued")
}
