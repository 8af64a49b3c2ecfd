package logger_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/surrealdb/dualstore/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	require.Equal(t, buff.Len(), 0)
	templogger.Logger.Info().Msg("Test")
	require.Contains(t, buff.String(), "Test")
}

func TestAdapterFields(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	data, err := logger.New().FromBuffer(buff).WithLevel("debug").Make()
	require.NoError(t, err)

	data.Adapter().Warn("secondary read failed", "caller", "user-1", "attempt", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buff.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "secondary read failed", line["message"])
	require.Equal(t, "user-1", line["caller"])
	require.EqualValues(t, 2, line["attempt"])
	require.Contains(t, line, "time")
}

func TestLevelFilter(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	data, err := logger.New().FromBuffer(buff).WithLevel("warn").Make()
	require.NoError(t, err)

	data.Adapter().Info("dropped")
	require.Zero(t, buff.Len())

	data.Adapter().Error("kept")
	require.Contains(t, buff.String(), "kept")
}

func TestFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dualstore.log")
	data, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	require.NotNil(t, data.LogFile)

	data.Logger.Info().Msg("to file")
	require.NoError(t, data.Close())
	require.FileExists(t, path)
}
