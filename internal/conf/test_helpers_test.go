package conf

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// resetForTest clears cached settings and viper state.
func resetForTest(t *testing.T) {
	t.Helper()

	settingsMutex.Lock()
	viper.Reset()
	settingsInstance = nil
	configFileFlag = ""
	once = sync.Once{}
	settingsMutex.Unlock()

	t.Cleanup(func() {
		settingsMutex.Lock()
		viper.Reset()
		settingsInstance = nil
		configFileFlag = ""
		once = sync.Once{}
		settingsMutex.Unlock()
	})
}

// writeConfig writes content to a config.yaml in a temp dir and points Load at it.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	SetConfigFile(path)
	return path
}

// validSettings returns settings that pass validation.
func validSettings() *Settings {
	return &Settings{
		Catalog: CatalogSettings{
			BaseURL:     "https://boardgamegeek.com/xmlapi2",
			Timeout:     10 * time.Second,
			RateLimitMS: 1000,
			MaxRetries:  3,
		},
		Image: ImageSettings{
			DownloadTimeout: 30 * time.Second,
			MaxSize:         2 * 1024 * 1024,
			MaxDimension:    300,
		},
		Database: DatabaseSettings{DSN: "host=localhost", MaxOpenConns: 1},
		Sync:     SyncSettings{Interval: 0, Limit: 50},
	}
}
