package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NotNil(t, logger.Check(zapcore.DebugLevel, "dev logger at debug"))
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.Nil(t, logger.Check(zapcore.DebugLevel, "suppressed"))
	require.NotNil(t, logger.Check(zapcore.InfoLevel, "info passes"))
}
