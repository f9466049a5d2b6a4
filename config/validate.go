package config

import (
	"fmt"
	"net/url"
	"strings"
)

// MinHMACSecretBytes is the shortest accepted token signing secret.
var MinHMACSecretBytes = 32

// ValidateConfig rejects configurations the daemon cannot start with. Phase
// start times are not checked: the registry accepts any unix timestamp,
// including ones before the epoch.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return err
	}
	if owner.IsZero() {
		return fmt.Errorf("config: owner must not be the zero address")
	}
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURI))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("config: BaseURI must be an absolute URL")
	}
	if base.RawQuery != "" || base.Fragment != "" {
		return fmt.Errorf("config: BaseURI must not carry a query or fragment")
	}
	if secret := cfg.Auth.HMACSecret; secret != "" && len(secret) < MinHMACSecretBytes {
		return fmt.Errorf("config: Auth.HMACSecret must be at least %d bytes", MinHMACSecretBytes)
	}
	if cfg.RateLimit.Burst < 1 {
		return fmt.Errorf("config: RateLimit.Burst must be positive")
	}
	if cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("config: Telemetry.SampleRatio must be within (0, 1]")
	}
	return nil
}
