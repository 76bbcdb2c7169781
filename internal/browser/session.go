package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/retry"
)

// LoginSelectors are the elements the login sequence touches. NetSuite's
// login form is stable, but everything stays overridable alongside the rest
// of the selector table.
type LoginSelectors struct {
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	Submit      string `yaml:"submit"`
	Marker      string `yaml:"marker"` // post-login element proving authentication
	ErrorBanner string `yaml:"error_banner"`
}

// DefaultLoginSelectors returns the stock NetSuite login selectors.
func DefaultLoginSelectors() LoginSelectors {
	return LoginSelectors{
		Email:       "#email",
		Password:    "#password",
		Submit:      "#login-submit",
		Marker:      "#ns_header, div.ns-header, #spn_HOME_d",
		ErrorBanner: "div.uir-alert-box, p.error, div.login-error",
	}
}

// Config carries everything Open needs. Credentials arrive as opaque values
// from the launcher layer; this package never persists them.
type Config struct {
	Endpoint string
	Username string
	Password string
	Headless bool

	// ManualLogin skips credential submission: the operator signs in by
	// hand in the opened window while Open polls for the post-login marker.
	ManualLogin   bool
	ManualTimeout time.Duration

	Timeout      time.Duration // bounded wait for each login signal
	PollInterval time.Duration

	Login LoginSelectors
}

// Session is the one authenticated browser context. Exclusively owned by the
// batch runner for the run's duration; never shared across goroutines. State
// is the screen the session is on; the navigation machine is seeded with it.
type Session struct {
	Driver Driver
	State  models.NavState

	stop func()
}

// Open launches a browser, authenticates against the ERP, and returns a live
// session. On any failure the browser process is released before returning.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Endpoint == "" {
		return nil, &models.AuthError{Msg: "endpoint not configured"}
	}
	if !cfg.ManualLogin && (cfg.Username == "" || cfg.Password == "") {
		return nil, &models.AuthError{Msg: "username/password not configured"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.ManualTimeout <= 0 {
		cfg.ManualTimeout = 5 * time.Minute
	}
	if cfg.Login == (LoginSelectors{}) {
		cfg.Login = DefaultLoginSelectors()
	}

	chrome, err := NewChrome(ctx, cfg.Headless)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Driver: chrome,
		State:  models.NavLoggedOut,
		stop:   chrome.Stop,
	}

	if err := login(ctx, chrome, cfg); err != nil {
		s.Close()
		return nil, err
	}

	s.State = models.NavMainMenu
	return s, nil
}

// Close releases the browser process. Idempotent; safe on every exit path.
func (s *Session) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.State = models.NavLoggedOut
}

// login drives the credential form (or waits out a manual login) and blocks
// until the post-login marker appears.
func login(ctx context.Context, d Driver, cfg Config) error {
	if err := d.Navigate(ctx, cfg.Endpoint); err != nil {
		return &models.AuthError{Msg: fmt.Sprintf("open login page: %v", err)}
	}

	if cfg.ManualLogin {
		err := retry.Poll(ctx, cfg.ManualTimeout, cfg.PollInterval, func(ctx context.Context) (bool, error) {
			return d.Visible(ctx, cfg.Login.Marker)
		})
		if err != nil {
			return &models.AuthError{Msg: "manual login not completed in time"}
		}
		return nil
	}

	err := retry.Poll(ctx, cfg.Timeout, cfg.PollInterval, func(ctx context.Context) (bool, error) {
		return d.Visible(ctx, cfg.Login.Email)
	})
	if err != nil {
		return &models.AuthError{Msg: "login form did not appear"}
	}

	if err := d.Fill(ctx, cfg.Login.Email, cfg.Username); err != nil {
		return &models.AuthError{Msg: fmt.Sprintf("fill username: %v", err)}
	}
	if err := d.Fill(ctx, cfg.Login.Password, cfg.Password); err != nil {
		return &models.AuthError{Msg: fmt.Sprintf("fill password: %v", err)}
	}
	if err := d.Click(ctx, cfg.Login.Submit); err != nil {
		return &models.AuthError{Msg: fmt.Sprintf("submit login: %v", err)}
	}

	// Wait for either the post-login marker or an explicit error banner.
	var banner string
	err = retry.Poll(ctx, cfg.Timeout, cfg.PollInterval, func(ctx context.Context) (bool, error) {
		if ok, _ := d.Visible(ctx, cfg.Login.ErrorBanner); ok {
			text, _ := d.Text(ctx, cfg.Login.ErrorBanner)
			banner = strings.TrimSpace(text)
			if banner == "" {
				banner = "login rejected"
			}
			return false, &models.AuthError{Msg: banner}
		}
		return d.Visible(ctx, cfg.Login.Marker)
	})
	if err != nil {
		var auth *models.AuthError
		if errors.As(err, &auth) {
			return auth
		}
		return &models.AuthError{Msg: "post-login marker did not appear"}
	}
	return nil
}
