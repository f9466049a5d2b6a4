package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"mintgate/crypto"
	"mintgate/native/issuance"
)

const (
	// HMACSecretEnv overrides Auth.HMACSecret so the secret can stay out of
	// the config file.
	HMACSecretEnv = "MINT_RPC_HMAC_SECRET"
	// OwnerPassphraseEnv names the variable the default passphrase source
	// reads when a new owner keystore is generated.
	OwnerPassphraseEnv = "MINT_OWNER_PASS"

	DefaultBaseURI         = "https://black-imperial-hummingbird-238.mypinata.cloud/ipfs/QmYkuCegb8oja1BLGjvD2rzfdatySiN91RQHDTJoRe9ZgP"
	DefaultRestrictedStart = int64(1714521900)
	DefaultPublicStart     = int64(1714608300)

	defaultDataDir      = "mint-data"
	defaultKeystoreFile = "owner.keystore"
)

type Config struct {
	ListenAddress     string    `toml:"ListenAddress"`
	DataDir           string    `toml:"DataDir"`
	EventLogPath      string    `toml:"EventLogPath"`
	Environment       string    `toml:"Environment"`
	BaseURI           string    `toml:"BaseURI"`
	Owner             string    `toml:"Owner"`
	OwnerKeystorePath string    `toml:"OwnerKeystorePath"`
	RestrictedStart   int64     `toml:"RestrictedStart"`
	PublicStart       int64     `toml:"PublicStart"`
	Auth              Auth      `toml:"Auth"`
	RateLimit         RateLimit `toml:"RateLimit"`
	Telemetry         Telemetry `toml:"Telemetry"`
	Logging           Logging   `toml:"Logging"`
}

// PassphraseSource resolves the passphrase protecting the owner keystore.
type PassphraseSource func() (string, error)

type loadOptions struct {
	passphrase PassphraseSource
}

// Option customises Load.
type Option func(*loadOptions)

// WithKeystorePassphraseSource sets the passphrase used when Load has to
// generate a new owner keystore.
func WithKeystorePassphraseSource(source PassphraseSource) Option {
	return func(o *loadOptions) {
		o.passphrase = source
	}
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration with a freshly generated owner
// keystore next to it.
func Load(path string, opts ...Option) (*Config, error) {
	options := loadOptions{passphrase: envPassphrase}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path, options.passphrase)
		if err != nil {
			return nil, err
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %q", path, undecoded[0].String())
		}
	}

	applyDefaults(cfg, path)
	if secret := strings.TrimSpace(os.Getenv(HMACSecretEnv)); secret != "" {
		cfg.Auth.HMACSecret = secret
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config, configPath string) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.DataDir = resolvePath(configPath, cfg.DataDir)
	if strings.TrimSpace(cfg.EventLogPath) == "" {
		cfg.EventLogPath = filepath.Join(cfg.DataDir, "events.db")
	}
	cfg.EventLogPath = resolvePath(configPath, cfg.EventLogPath)
	if strings.TrimSpace(cfg.BaseURI) == "" {
		cfg.BaseURI = DefaultBaseURI
	}
	if cfg.OwnerKeystorePath != "" {
		cfg.OwnerKeystorePath = resolvePath(configPath, cfg.OwnerKeystorePath)
	}
	if strings.TrimSpace(cfg.Auth.Issuer) == "" {
		cfg.Auth.Issuer = "mintgate"
	}
	if strings.TrimSpace(cfg.Auth.Audience) == "" {
		cfg.Auth.Audience = "mintgate-rpc"
	}
	if cfg.Auth.ClockSkewSeconds <= 0 {
		cfg.Auth.ClockSkewSeconds = 120
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Telemetry.SampleRatio <= 0 {
		cfg.Telemetry.SampleRatio = 1
	}
}

// OwnerAddress resolves the registry owner from Owner, or from the address
// recorded in OwnerKeystorePath when Owner is empty.
func (c *Config) OwnerAddress() (crypto.Address, error) {
	if owner := strings.TrimSpace(c.Owner); owner != "" {
		addr, err := crypto.ParseAddress(owner)
		if err != nil {
			return crypto.Address{}, fmt.Errorf("config: Owner: %w", err)
		}
		return addr, nil
	}
	if c.OwnerKeystorePath == "" {
		return crypto.Address{}, fmt.Errorf("config: Owner or OwnerKeystorePath required")
	}
	addr, err := crypto.KeystoreAddress(c.OwnerKeystorePath)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: OwnerKeystorePath: %w", err)
	}
	return addr, nil
}

// PhaseClock returns the configured phase start times. They seed the
// registry only when no clock has been stored yet.
func (c *Config) PhaseClock() issuance.PhaseClock {
	return issuance.PhaseClock{
		RestrictedStart: c.RestrictedStart,
		PublicStart:     c.PublicStart,
	}
}

// createDefault creates and saves a default configuration file together
// with a new owner keystore.
func createDefault(path string, passphrase PassphraseSource) (*Config, error) {
	if passphrase == nil {
		passphrase = envPassphrase
	}
	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("owner keystore passphrase: %w", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	if err := crypto.SaveToKeystore(resolvePath(path, defaultKeystoreFile), key, pass); err != nil {
		return nil, err
	}

	// Paths are stored relative to the config file so the directory can move.
	cfg := &Config{
		ListenAddress:     ":8645",
		DataDir:           defaultDataDir,
		BaseURI:           DefaultBaseURI,
		OwnerKeystorePath: defaultKeystoreFile,
		RestrictedStart:   DefaultRestrictedStart,
		PublicStart:       DefaultPublicStart,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func envPassphrase() (string, error) {
	value, ok := os.LookupEnv(OwnerPassphraseEnv)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s must be set to create an owner keystore", OwnerPassphraseEnv)
	}
	return value, nil
}

// resolvePath anchors a relative path at the directory holding the config
// file.
func resolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}
