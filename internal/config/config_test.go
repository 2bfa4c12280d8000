package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("release", cfg.Mode)
	req.Equal(8080, cfg.Port)
	req.Equal(10*time.Second, cfg.SessionGrace)
	req.Equal(30*time.Second, cfg.RoomGrace)
	req.Equal(15*time.Second, cfg.IdentifyTimeout)
	req.Equal(32, cfg.SendBuffer)
	req.NotEmpty(cfg.STUNURLs)
}
