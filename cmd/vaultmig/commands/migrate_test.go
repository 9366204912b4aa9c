package commands

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelab-ops/vaultmig/internal/config"
	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{Logger: logging.NewWithWriter(false, true, io.Discard)}
}

func TestPassphraseSourceFromFile(t *testing.T) {
	pwFile := filepath.Join(t.TempDir(), "vault-pass")
	require.NoError(t, os.WriteFile(pwFile, []byte("hunter2\n"), 0o600))

	cfg := testConfig()
	cfg.Settings.VaultPasswordFile = pwFile

	source, err := passphraseSource(cfg)
	require.NoError(t, err)
	require.NotNil(t, source)
	defer source.Destroy()

	assert.NoError(t, source.Prepare())
}

func TestPassphraseSourceNonInteractiveWithoutFileIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.NonInteractive = true

	source, err := passphraseSource(cfg)
	assert.Nil(t, source)
	require.Error(t, err)
	assert.True(t, vmerrors.IsFatal(err))
	assert.Contains(t, err.Error(), "non-interactive")
}

func TestPassphraseSourceDefaultsToInteractive(t *testing.T) {
	cfg := testConfig()

	source, err := passphraseSource(cfg)
	require.NoError(t, err)
	require.NotNil(t, source)
	source.Destroy()
}

func TestApplyFlagOverridesOnlyChangedFlagsWin(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("ansible-dir", "ansible", "")
	cmd.Flags().String("environment", "prod", "")
	require.NoError(t, cmd.Flags().Set("ansible-dir", "infra"))

	settings := config.Defaults()
	settings.Environment = "from-config-file"

	applyFlagOverrides(cmd, &settings, flagOverrides{
		"ansible-dir": func(s *config.Settings) { s.AnsibleDir = "infra" },
		"environment": func(s *config.Settings) { s.Environment = "prod" },
	})

	assert.Equal(t, "infra", settings.AnsibleDir)
	// Untouched flag must not clobber the file-configured value.
	assert.Equal(t, "from-config-file", settings.Environment)
}

func TestMigrateCommandFlagDefaults(t *testing.T) {
	cmd := NewMigrateCommand(testConfig())

	for flag, want := range map[string]string{
		"ansible-dir": "ansible",
		"environment": "prod",
		"output-dir":  "migration-output",
		"timeout":     "30",
		"dry-run":     "false",
	} {
		f := cmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, want, f.DefValue, flag)
	}
}
