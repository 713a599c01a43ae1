// Package browser shows Canvas pages to the operator, either through the
// system's default browser or a Chrome window driven with go-rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"sisimport/internal/logging"
)

const (
	// ModeSystem hands the URL to the operating system.
	ModeSystem = "system"
	// ModeChrome opens the URL in a Chrome window launched by go-rod.
	ModeChrome = "chrome"
)

// Config selects how URLs are opened.
type Config struct {
	Mode string `yaml:"mode" validate:"omitempty,oneof=system chrome"`
	// Bin is the Chrome binary for ModeChrome. Empty lets go-rod find or fetch one.
	Bin string `yaml:"bin,omitempty"`
	// ProfileDir keeps Chrome's user data (and the operator's Canvas login) between runs.
	ProfileDir string `yaml:"profile_dir,omitempty"`
}

// DefaultConfig opens URLs in the system browser.
func DefaultConfig() Config {
	return Config{Mode: ModeSystem}
}

// Opener opens URLs for the operator. The zero value uses the system browser.
type Opener struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser

	openSystem func(url string)

	// launch starts Chrome and returns its control URL and a kill func.
	launch  func(cfg Config) (string, func(), error)
	connect func(controlURL string) (*rod.Browser, error)
}

// New creates an opener for cfg.
func New(cfg Config) (*Opener, error) {
	switch cfg.Mode {
	case "", ModeSystem, ModeChrome:
	default:
		return nil, fmt.Errorf("unknown browser mode %q", cfg.Mode)
	}
	return &Opener{cfg: cfg, openSystem: launcher.Open, launch: launchChrome, connect: connectChrome}, nil
}

func launchChrome(cfg Config) (string, func(), error) {
	l := launcher.New().Headless(false)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.ProfileDir != "" {
		l = l.UserDataDir(cfg.ProfileDir)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return "", nil, err
	}
	return controlURL, l.Kill, nil
}

func connectChrome(controlURL string) (*rod.Browser, error) {
	b := rod.New().ControlURL(controlURL).Context(context.Background())
	if err := b.Connect(); err != nil {
		return nil, err
	}
	return b, nil
}

// Open shows url to the operator.
func (o *Opener) Open(url string) error {
	if url == "" {
		return errors.New("empty url")
	}
	if o.cfg.Mode != ModeChrome {
		open := o.openSystem
		if open == nil {
			open = launcher.Open
		}
		logging.DuplicateDebug("opening %s in the system browser", url)
		open(url)
		return nil
	}
	return o.openChrome(url)
}

func (o *Opener) openChrome(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.browser != nil {
		if _, err := o.browser.Version(); err != nil {
			logging.DuplicateDebug("stale chrome connection, relaunching: %v", err)
			_ = o.browser.Close()
			o.browser = nil
		}
	}
	if o.browser == nil {
		launch, connect := o.launch, o.connect
		if launch == nil {
			launch = launchChrome
		}
		if connect == nil {
			connect = connectChrome
		}
		controlURL, kill, err := launch(o.cfg)
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		browser, err := connect(controlURL)
		if err != nil {
			kill()
			return fmt.Errorf("connect to chrome: %w", err)
		}
		o.browser = browser
	}

	if _, err := o.browser.Page(proto.TargetCreateTarget{URL: url}); err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	logging.DuplicateDebug("opened %s in chrome", url)
	return nil
}

// Close shuts down a Chrome window opened by the opener.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.browser == nil {
		return nil
	}
	err := o.browser.Close()
	o.browser = nil
	return err
}
