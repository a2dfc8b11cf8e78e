package build

import (
	"bytes"
	"strings"
	"testing"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SubLoggerManager, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	handler := btclog.NewDefaultHandler(&buf, btclog.WithNoTimestamp())
	mgr := NewSubLoggerManager(handler)
	mgr.GenSubLogger("KCHN")
	mgr.GenSubLogger("INPT")

	return mgr, &buf
}

// TestParseAndSetDebugLevels checks the global and per-subsystem level syntax.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		level     string
		expErr    bool
		expLevels map[string]btclogv1.Level
	}{
		{
			name:  "global level",
			level: "debug",
			expLevels: map[string]btclogv1.Level{
				"KCHN": btclog.LevelDebug,
				"INPT": btclog.LevelDebug,
			},
		},
		{
			name:  "global then subsystem",
			level: "warn,INPT=trace",
			expLevels: map[string]btclogv1.Level{
				"KCHN": btclog.LevelWarn,
				"INPT": btclog.LevelTrace,
			},
		},
		{
			name:   "unknown subsystem",
			level:  "info,NOPE=debug",
			expErr: true,
		},
		{
			name:   "invalid level",
			level:  "loud",
			expErr: true,
		},
		{
			name:   "malformed pair",
			level:  "info,KCHN=debug=trace",
			expErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mgr, _ := newTestManager(t)
			err := ParseAndSetDebugLevels(tc.level, mgr)
			if tc.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			loggers := mgr.SubLoggers()
			for subsystem, level := range tc.expLevels {
				require.Equal(t, level, loggers[subsystem].Level())
			}
		})
	}
}

// TestSubLoggerManagerOutput makes sure generated loggers share the root
// handler and carry their subsystem tag.
func TestSubLoggerManagerOutput(t *testing.T) {
	t.Parallel()

	mgr, buf := newTestManager(t)
	require.Equal(t, []string{"INPT", "KCHN"}, mgr.SupportedSubsystems())

	mgr.SetLogLevels("info")
	mgr.SubLoggers()["KCHN"].Infof("derived %d keys", 5)
	require.Contains(t, buf.String(), "KCHN")
	require.Contains(t, buf.String(), "derived 5 keys")

	buf.Reset()
	mgr.SetLogLevel("KCHN", "off")
	mgr.SubLoggers()["KCHN"].Infof("hidden")
	require.Empty(t, buf.String())
}

// TestLogConfigValidate covers the compressor and logger toggles.
func TestLogConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()
	require.NoError(t, cfg.Validate())

	cfg.File.Compressor = Zstd
	require.NoError(t, cfg.Validate())

	cfg.File.Compressor = "lz4"
	require.Error(t, cfg.Validate())

	cfg = DefaultLogConfig()
	cfg.Console.Disable = true
	cfg.File.Disable = true
	require.Error(t, cfg.Validate())

	require.True(t, SupportedLogCompressor(Gzip))
	require.False(t, SupportedLogCompressor("bz2"))
}

// TestNewSubLoggerFallback checks that a missing constructor yields a
// disabled logger in default builds.
func TestNewSubLoggerFallback(t *testing.T) {
	t.Parallel()

	if LoggingType != LogTypeDefault {
		t.Skip("stdlog build")
	}

	require.Equal(t, btclog.Disabled, NewSubLogger("TEST", nil))

	var buf bytes.Buffer
	mgr := NewSubLoggerManager(btclog.NewDefaultHandler(&buf))
	logger := NewSubLogger("TEST", mgr.GenSubLogger)
	require.Contains(t, mgr.SubLoggers(), "TEST")
	require.Equal(t, mgr.SubLoggers()["TEST"], logger)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	version := Version()
	require.True(t, strings.HasPrefix(version, "0.1.0"))
	require.Equal(t, Deployment == Development,
		strings.Contains(version, "build=dev"))
	require.Equal(t, "prod", Production.String())
}
