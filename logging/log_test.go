package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/powsim/nodesim/logging"
)

func TestContext(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := logging.NewContext(context.Background(), logger)
	require.Same(t, logger, logging.FromContext(ctx))
	require.NotNil(t, logging.FromContext(context.Background()))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodesim.log")
	logger := logging.New(zap.InfoLevel, path, true, logging.FileOptions{MaxSize: 1, MaxBackups: 2})
	logger.Debug("written to file only", zap.Uint64("block", 7))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"block":7`)
}
