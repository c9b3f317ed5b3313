package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, root string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("watch.root_path", root)
	v.Set("alerts.log_file", filepath.Join(t.TempDir(), "alerts.txt"))
	v.Set("logging.file", "")
	return v
}

func TestLoad_Defaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(newViper(t, root))
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Watch.RootPath)
	assert.True(t, cfg.Watch.Recursive)
	assert.Equal(t, 10*time.Second, cfg.Watch.TickInterval)
	assert.Equal(t, DefaultTimezone, cfg.Alerts.Timezone)
	assert.Equal(t, time.Second, cfg.DebounceWindow())
	assert.Equal(t, "info", cfg.Logging.Level)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.String())
}

func TestLoad_Overrides(t *testing.T) {
	v := newViper(t, t.TempDir())
	v.Set("watch.recursive", false)
	v.Set("watch.tick_interval", "250ms")
	v.Set("alerts.timezone", "UTC")
	v.Set("alerts.debounce_seconds", 2.5)
	v.Set("logging.level", "DEBUG")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.False(t, cfg.Watch.Recursive)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.TickInterval)
	assert.Equal(t, 2500*time.Millisecond, cfg.DebounceWindow())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	v := newViper(t, "~/watched")
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "watched"), cfg.Watch.RootPath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"missing root", "watch.root_path", ""},
		{"negative debounce", "alerts.debounce_seconds", -1},
		{"unknown timezone", "alerts.timezone", "Mars/Olympus_Mons"},
		{"empty timezone", "alerts.timezone", ""},
		{"bad level", "logging.level", "chatty"},
		{"zero tick", "watch.tick_interval", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t, t.TempDir())
			v.Set(tt.key, tt.val)

			_, err := Load(v)
			require.Error(t, err)
			assert.True(t, hidserrors.IsConfigError(err), err.Error())
		})
	}
}

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument()

	alerts, ok := doc["alerts"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, DefaultTimezone, alerts["timezone"])
	assert.Equal(t, 1.0, alerts["debounce_seconds"])

	watch, ok := doc["watch"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, watch["recursive"])

	assert.Len(t, Keys(), len(Defaults()))
	assert.Equal(t, "alerts.debounce_seconds", Keys()[0])
}

func TestLoadLogging(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "WARN")
	v.Set("logging.file", "~/hids-diag.log")

	lc, err := LoadLogging(v)
	require.NoError(t, err)
	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, 100, lc.MaxSize)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "hids-diag.log"), lc.File)

	quiet := lc.LogConfig(false)
	assert.Equal(t, "warn", quiet.Level)
	assert.False(t, quiet.Console)
	assert.Equal(t, lc.File, quiet.OutputPath)

	verbose := lc.LogConfig(true)
	assert.Equal(t, "debug", verbose.Level)
	assert.True(t, verbose.Console)
}

func TestLoadLogging_NoWatchRootNeeded(t *testing.T) {
	v := viper.New()
	v.Set("logging.file", "")

	lc, err := LoadLogging(v)
	require.NoError(t, err)
	assert.Empty(t, lc.LogConfig(false).OutputPath)
}

func TestLoadLogging_InvalidLevel(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "chatty")

	_, err := LoadLogging(v)
	assert.True(t, hidserrors.IsConfigError(err))
}
