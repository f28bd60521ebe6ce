package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

// Default retry and locking policy.
const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 100 * time.Millisecond
	DefaultLockTimeout = 2 * time.Second
)

// Config controls the store's retry, backoff, locking, and recovery behavior.
// The retry policy is configuration rather than hardcoded constants so tests
// can exercise retry-exhaustion paths deterministically.
type Config struct {
	// MaxAttempts is the number of times a read or write is attempted
	// before ErrDocumentCorrupt or ErrStorage is surfaced. Minimum 1.
	MaxAttempts int

	// RetryDelay is the backoff base. Attempt n sleeps n*RetryDelay before
	// the next try (linear backoff).
	RetryDelay time.Duration

	// LockTimeout bounds acquisition of the cross-process advisory file lock.
	LockTimeout time.Duration

	// RecoverMissing re-seeds the default document when the collection file
	// is missing on the first read attempt of an initialized store. This
	// recovers from a deleted file.
	RecoverMissing bool

	// RecoverCorrupt re-seeds the default document when the file is present
	// but unparseable on the first read attempt. Off by default: it discards
	// whatever is in the file, so it must be an explicit choice.
	RecoverCorrupt bool
}

// DefaultConfig returns the default policy: 5 attempts, 100ms linear backoff,
// 2s lock timeout, missing-file recovery on, corrupt-file recovery off.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		RetryDelay:     DefaultRetryDelay,
		LockTimeout:    DefaultLockTimeout,
		RecoverMissing: true,
		RecoverCorrupt: false,
	}
}

// fileConfig is the serialized shape of a config file. Pointer fields
// distinguish "absent" from "explicit zero" so a file only overrides what it
// actually sets.
type fileConfig struct {
	MaxAttempts    *int  `json:"max_attempts"`
	RetryDelayMS   *int  `json:"retry_delay_ms"`
	LockTimeoutMS  *int  `json:"lock_timeout_ms"`
	RecoverMissing *bool `json:"recover_missing"`
	RecoverCorrupt *bool `json:"recover_corrupt"`
}

// LoadConfig reads a config file and merges it over [DefaultConfig].
// The file is JSONC (comments and trailing commas allowed). An explicitly
// given path must exist.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}

		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON.
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	err = json.Unmarshal(standardized, &fc)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	cfg := DefaultConfig()

	if fc.MaxAttempts != nil {
		cfg.MaxAttempts = *fc.MaxAttempts
	}

	if fc.RetryDelayMS != nil {
		cfg.RetryDelay = time.Duration(*fc.RetryDelayMS) * time.Millisecond
	}

	if fc.LockTimeoutMS != nil {
		cfg.LockTimeout = time.Duration(*fc.LockTimeoutMS) * time.Millisecond
	}

	if fc.RecoverMissing != nil {
		cfg.RecoverMissing = *fc.RecoverMissing
	}

	if fc.RecoverCorrupt != nil {
		cfg.RecoverCorrupt = *fc.RecoverCorrupt
	}

	validateErr := validateConfig(cfg)
	if validateErr != nil {
		return Config{}, validateErr
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", cfg.MaxAttempts)
	}

	if cfg.RetryDelay < 0 {
		return fmt.Errorf("retry_delay_ms cannot be negative, got %s", cfg.RetryDelay)
	}

	if cfg.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout_ms must be positive, got %s", cfg.LockTimeout)
	}

	return nil
}
