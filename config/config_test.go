package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mintgate/crypto"
)

var testOwnerString = func() string {
	var raw [20]byte
	raw[0] = 0x42
	raw[19] = 0x24
	return crypto.AddressFromRaw(raw).String()
}()

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesSettings(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`ListenAddress = "127.0.0.1:9100"
DataDir = "/var/lib/mint"
EventLogPath = "/var/lib/mint/log.db"
Environment = "staging"
BaseURI = "https://example.org/meta/"
Owner = "%s"
RestrictedStart = 100
PublicStart = 200

[Auth]
HMACSecret = "0123456789abcdef0123456789abcdef"
Issuer = "issuer"
Audience = "aud"
ClockSkewSeconds = 30

[RateLimit]
RequestsPerMinute = 60
Burst = 5

[Telemetry]
OTLPEndpoint = "collector:4318"
Insecure = true
SampleRatio = 0.5

[Logging]
Level = "debug"
`, testOwnerString))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9100", cfg.ListenAddress)
	require.Equal(t, "/var/lib/mint/log.db", cfg.EventLogPath)
	require.Equal(t, "staging", cfg.Environment)
	require.Equal(t, int64(100), cfg.PhaseClock().RestrictedStart)
	require.Equal(t, int64(200), cfg.PhaseClock().PublicStart)
	require.Equal(t, "issuer", cfg.Auth.Issuer)
	require.Equal(t, int64(30), cfg.Auth.ClockSkewSeconds)
	require.Equal(t, 5, cfg.RateLimit.Burst)
	require.True(t, cfg.Telemetry.Insecure)
	require.Equal(t, 0.5, cfg.Telemetry.SampleRatio)
	require.Equal(t, "debug", cfg.Logging.Level)

	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	require.Equal(t, testOwnerString, owner.String())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("Owner = %q\n", testOwnerString))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8645", cfg.ListenAddress)
	require.Equal(t, DefaultBaseURI, cfg.BaseURI)
	require.Equal(t, filepath.Join(cfg.DataDir, "events.db"), cfg.EventLogPath)
	require.Equal(t, "mintgate", cfg.Auth.Issuer)
	require.Equal(t, "mintgate-rpc", cfg.Auth.Audience)
	require.Equal(t, 20, cfg.RateLimit.Burst)
	require.Equal(t, float64(120), cfg.RateLimit.RequestsPerMinute)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("Owner = %q\nGenesisFile = \"genesis.json\"\n", testOwnerString))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "GenesisFile")
}

func TestLoadCreatesDefaultWithKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	source := func() (string, error) { return "test-passphrase", nil }

	cfg, err := Load(path, WithKeystorePassphraseSource(source))
	require.NoError(t, err)
	require.FileExists(t, path)
	require.FileExists(t, cfg.OwnerKeystorePath)
	require.Equal(t, DefaultRestrictedStart, cfg.RestrictedStart)
	require.Equal(t, DefaultPublicStart, cfg.PublicStart)

	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	key, err := crypto.LoadFromKeystore(cfg.OwnerKeystorePath, "test-passphrase")
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().Raw(), owner.Raw())

	reloaded, err := Load(path)
	require.NoError(t, err)
	reloadedOwner, err := reloaded.OwnerAddress()
	require.NoError(t, err)
	require.Equal(t, owner.Raw(), reloadedOwner.Raw())
}

func TestLoadDefaultRequiresPassphrase(t *testing.T) {
	t.Setenv(OwnerPassphraseEnv, "")
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := Load(path)
	require.Error(t, err)
	require.NoFileExists(t, path)
}

func TestLoadHMACSecretFromEnv(t *testing.T) {
	t.Setenv(HMACSecretEnv, "env-secret-env-secret-env-secret-0000")
	path := writeConfig(t, fmt.Sprintf("Owner = %q\n", testOwnerString))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-secret-env-secret-env-secret-0000", cfg.Auth.HMACSecret)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Owner: testOwnerString}
		applyDefaults(cfg, "config.toml")
		return cfg
	}
	require.NoError(t, ValidateConfig(valid()))

	cases := map[string]func(*Config){
		"missing owner":   func(c *Config) { c.Owner = "" },
		"bad owner":       func(c *Config) { c.Owner = "nope" },
		"zero owner":      func(c *Config) { c.Owner = "0x0000000000000000000000000000000000000000" },
		"relative uri":    func(c *Config) { c.BaseURI = "ipfs/abc" },
		"uri with query":  func(c *Config) { c.BaseURI = "https://example.org/x?y=1" },
		"short secret":    func(c *Config) { c.Auth.HMACSecret = "short" },
		"ratio above one": func(c *Config) { c.Telemetry.SampleRatio = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.Error(t, ValidateConfig(cfg))
		})
	}
}

func TestLoadAcceptsPreEpochPhaseStarts(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("Owner = %q\nRestrictedStart = -3600\nPublicStart = -60\n", testOwnerString))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(-3600), cfg.PhaseClock().RestrictedStart)
	require.Equal(t, int64(-60), cfg.PhaseClock().PublicStart)
}

func TestLoadResolvesPathsAgainstConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("Owner = %q\nDataDir = \"state\"\nEventLogPath = \"logs/events.db\"\n", testOwnerString)), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "state"), cfg.DataDir)
	require.Equal(t, filepath.Join(dir, "logs", "events.db"), cfg.EventLogPath)
}

func TestDefaultConfigKeepsPathsRelative(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	root := t.TempDir()
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	source := func() (string, error) { return "test-passphrase", nil }

	cfg, err := Load(filepath.Join("node", "config.toml"), WithKeystorePassphraseSource(source))
	require.NoError(t, err)
	require.Equal(t, filepath.Join("node", "mint-data"), cfg.DataDir)
	require.Equal(t, filepath.Join("node", "owner.keystore"), cfg.OwnerKeystorePath)
	require.FileExists(t, cfg.OwnerKeystorePath)

	raw, err := os.ReadFile(filepath.Join("node", "config.toml"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `DataDir = "mint-data"`)
	require.Contains(t, string(raw), `OwnerKeystorePath = "owner.keystore"`)

	reloaded, err := Load(filepath.Join("node", "config.toml"))
	require.NoError(t, err)
	require.Equal(t, cfg.OwnerKeystorePath, reloaded.OwnerKeystorePath)
	require.Equal(t, cfg.DataDir, reloaded.DataDir)
}
