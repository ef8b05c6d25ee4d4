package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, parseLevel("debug"))
	require.Equal(t, logrus.WarnLevel, parseLevel("WARN"))
	require.Equal(t, logrus.InfoLevel, parseLevel("loud"))
}

func TestNew_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "info")
	require.NoError(t, err)
	l.Infof("Evaluated %d deals", 3)
	l.Debugf("hidden")
	l.Close()

	raw, err := os.ReadFile(filepath.Join(dir, "engagement.log"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "Evaluated 3 deals")
	require.NotContains(t, string(raw), "hidden")
}
