package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "hidswatch.log")

	l, err := New(&LogConfig{
		Level:      "debug",
		OutputPath: path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)

	l.Info("watch started", zap.String("root", "/tmp/watched"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "watch started")
	assert.Contains(t, string(data), "/tmp/watched")
}

func TestNew_NoOutputsIsNop(t *testing.T) {
	l, err := New(&LogConfig{Level: "info"})
	require.NoError(t, err)
	assert.NotNil(t, l)
	l.Info("discarded")
}

func TestSetAndWithSession(t *testing.T) {
	Set(zap.NewNop())
	assert.NotNil(t, Get())
	assert.NotNil(t, WithSession("3f0c"))
	assert.NoError(t, Sync())
}
