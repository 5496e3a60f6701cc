package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, filepath.Join("syncrollups-data", "chaindata"), cfg.DBPath())
	require.Equal(t, "/abs", cfg.ResolvePath("/abs"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `datadir: /data/test
chain_id: 17
engine:
  max_scope_depth: 8
verifier:
  kind: bls
  committee:
    - "0xaabb"
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/test", cfg.DataDir)
	require.Equal(t, uint64(17), cfg.ChainID)
	require.Equal(t, 8, cfg.Engine.MaxScopeDepth)
	require.Equal(t, uint64(7200), cfg.Engine.DefaultMaxAge, "unset keys keep their defaults")
	require.Equal(t, VerifierBLS, cfg.Verifier.Kind)
	require.Equal(t, []string{"0xaabb"}, cfg.Verifier.Committee)
	require.Equal(t, "json", cfg.Log.Format)

	keys, err := cfg.CommitteeKeys()
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0xaa, 0xbb}}, keys)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datadri: typo\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain_id: 17\n"), 0o644))
	t.Setenv("SYNCROLLUPS_CHAIN_ID", "99")
	t.Setenv("SYNCROLLUPS_SHIELD_MAX_AGE", "10")
	t.Setenv("SYNCROLLUPS_VERIFIER_COMMITTEE", "0x01,0x02")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(99), cfg.ChainID)
	require.Equal(t, uint64(10), cfg.Shield.MaxAge)
	require.Equal(t, []string{"0x01", "0x02"}, cfg.Verifier.Committee)
}

func TestValidateReportsEveryError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	cfg.ChainID = 0
	cfg.Engine.Address = "nope"
	cfg.Verifier.Kind = "snark"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 5)
}

func TestValidateShieldWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Shield.MinDelay = 300
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Verifier.Kind = VerifierBLS
	cfg.Verifier.Committee = []string{"zz"}
	require.Error(t, cfg.Validate())
}
