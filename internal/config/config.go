// Package config maps viper settings into a typed, validated struct so the
// rest of the program never touches viper directly.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds every recognized setting after defaults, config file, env
// vars and flags have been merged by viper.
type Config struct {
	Endpoint string
	Username string
	Password string

	Headless    bool
	ManualLogin bool

	Timeout       time.Duration
	PollInterval  time.Duration
	MaxRetries    int
	RecordRetries int

	DBPath        string
	SelectorsPath string
	PurgeRecType  int
}

// FromViper reads the merged settings out of viper.
func FromViper() Config {
	return Config{
		Endpoint:      viper.GetString("endpoint"),
		Username:      viper.GetString("username"),
		Password:      viper.GetString("password"),
		Headless:      viper.GetBool("headless"),
		ManualLogin:   viper.GetBool("manual_login"),
		Timeout:       time.Duration(viper.GetInt("timeout_seconds")) * time.Second,
		PollInterval:  time.Duration(viper.GetInt("poll_ms")) * time.Millisecond,
		MaxRetries:    viper.GetInt("max_retries"),
		RecordRetries: viper.GetInt("record_retries"),
		DBPath:        viper.GetString("db_path"),
		SelectorsPath: viper.GetString("selectors"),
		PurgeRecType:  viper.GetInt("purge_rectype"),
	}
}

// Validate checks the settings a batch run cannot start without. Credential
// checks are skipped in manual-login mode, where the operator signs in by
// hand in the visible browser window.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required (set NSAUTO_ENDPOINT or endpoint in config)")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint %q is not a valid URL", c.Endpoint)
	}
	if !c.ManualLogin {
		if c.Username == "" {
			return errors.New("username is required unless manual_login is enabled")
		}
		if c.Password == "" {
			return errors.New("password is required unless manual_login is enabled")
		}
	}
	if c.Timeout <= 0 {
		return errors.New("timeout_seconds must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_ms must be positive")
	}
	if c.MaxRetries < 1 {
		return errors.New("max_retries must be at least 1")
	}
	if c.RecordRetries < 1 {
		return errors.New("record_retries must be at least 1")
	}
	return nil
}
