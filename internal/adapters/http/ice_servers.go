package http

import (
	"github.com/pion/webrtc/v4"

	"parlor/internal/config"
)

// iceServers builds the ICE server list advertised to clients for the
// peer-to-peer leg. The server itself never joins the media path.
func iceServers(cfg *config.Config) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, 2)
	if len(cfg.STUNURLs) > 0 {
		out = append(out, webrtc.ICEServer{URLs: cfg.STUNURLs})
	}
	if cfg.TURNURL != "" {
		out = append(out, webrtc.ICEServer{
			URLs:       []string{cfg.TURNURL},
			Username:   cfg.TURNUser,
			Credential: cfg.TURNPass,
		})
	}
	return out
}
