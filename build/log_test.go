package build

import (
	"bytes"
	"strings"
	"testing"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

// TestParseAndSetDebugLevels checks global and per subsystem levels as well
// as the rejection of malformed level strings.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   string
		want    map[string]btclogv1.Level
		wantErr string
	}{
		{
			name:  "global",
			level: "debug",
			want: map[string]btclogv1.Level{
				"AAAA": btclog.LevelDebug,
				"BBBB": btclog.LevelDebug,
			},
		},
		{
			name:  "global and subsystem",
			level: "warn,BBBB=trace",
			want: map[string]btclogv1.Level{
				"AAAA": btclog.LevelWarn,
				"BBBB": btclog.LevelTrace,
			},
		},
		{
			name:  "subsystem only",
			level: "AAAA=error",
			want: map[string]btclogv1.Level{
				"AAAA": btclog.LevelError,
				"BBBB": btclog.LevelInfo,
			},
		},
		{
			name:    "invalid global",
			level:   "loud",
			wantErr: "is invalid",
		},
		{
			name:    "unknown subsystem",
			level:   "info,CCCC=debug",
			wantErr: "supported subsystems are [AAAA BBBB]",
		},
		{
			name:    "missing pair",
			level:   "info,debug",
			wantErr: "invalid subsystem/level pair",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			root := NewSubLoggerManager(btclog.NewDefaultHandler(&buf))
			root.GenSubLogger("AAAA", func() {})
			root.GenSubLogger("BBBB", func() {})
			root.SetLogLevels("info")

			err := ParseAndSetDebugLevels(test.level, root)
			if test.wantErr != "" {
				require.ErrorContains(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)

			for subsystem, level := range test.want {
				logger := root.SubLoggers()[subsystem]
				require.Equal(t, level, logger.Level(), subsystem)
			}
		})
	}
}

// TestSubLoggerOutput makes sure sub loggers write through the handlers of
// the manager, tagged with their subsystem.
func TestSubLoggerOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	root := NewSubLoggerManager(btclog.NewDefaultHandler(&buf))
	logger := NewSubLogger("TEST", func(tag string) btclog.Logger {
		return root.GenSubLogger(tag, func() {})
	})
	root.SetLogLevels("info")

	logger.Debugf("hidden")
	logger.Infof("visible %d", 1)

	out := buf.String()
	require.False(t, strings.Contains(out, "hidden"))
	require.Contains(t, out, "visible 1")
	require.Contains(t, out, "TEST")
	require.Equal(t, []string{"TEST"}, root.SupportedSubsystems())
}

// TestDeploymentString checks the names of the deployment types.
func TestDeploymentString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "development", Development.String())
	require.Equal(t, "production", Production.String())
	require.Equal(t, "unknown", DeploymentType(7).String())
	require.Contains(
		t, []string{"development", "production"}, Deployment.String(),
	)
}
