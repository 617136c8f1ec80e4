// Package config loads client and server configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Default configuration values.
const (
	DefaultServerURL = "ws://localhost:3001/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultSTUNAlt   = "stun:global.stun.twilio.com:3478"
	DefaultCodec     = "json"
)

// ErrRelayWithoutTURN is returned when relay-only ICE is requested but no
// TURN server is configured.
var ErrRelayWithoutTURN = errors.New("cannot force relay mode without TURN server configured")

// Config holds the participant's configuration.
type Config struct {
	// ServerURL is the signaling websocket endpoint.
	ServerURL string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool

	// Codec is the signaling frame codec: "json" or "msgpack".
	Codec string

	// CaptureFile is an Ogg/Opus file sent as the local microphone. Empty
	// sends silence.
	CaptureFile string

	// RecordDir, when set, receives one Ogg file per remote participant.
	RecordDir string
}

// Options for loading config with CLI flag overrides.
type Options struct {
	ServerURL   string
	Domain      string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
	Codec       string
	CaptureFile string
	RecordDir   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	serverURL, err := resolveServerURL(opts)
	if err != nil {
		return nil, err
	}

	stun := []string{DefaultSTUN, DefaultSTUNAlt}
	if s := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER")); s != "" {
		stun = []string{s}
	}

	forceRelay := opts.ForceRelay
	if !forceRelay {
		if v, ok := os.LookupEnv("FORCE_RELAY"); ok {
			forceRelay, _ = strconv.ParseBool(v)
		}
	}

	cfg := &Config{
		ServerURL:   serverURL,
		STUNServers: stun,
		TURNServer:  firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:    firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:    firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:  forceRelay,
		Codec:       firstNonEmpty(opts.Codec, os.Getenv("YALI_CODEC"), DefaultCodec),
		CaptureFile: firstNonEmpty(opts.CaptureFile, os.Getenv("YALI_CAPTURE_FILE")),
		RecordDir:   firstNonEmpty(opts.RecordDir, os.Getenv("YALI_RECORD_DIR")),
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, ErrRelayWithoutTURN
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveServerURL picks the websocket endpoint. An explicit URL wins over a
// domain at the same level; flags win over the environment.
func resolveServerURL(opts Options) (string, error) {
	raw := opts.ServerURL
	if raw == "" && opts.Domain != "" {
		raw = domainURL(opts.Domain)
	}
	if raw == "" {
		raw = os.Getenv("SERVER_URL")
	}
	if raw == "" {
		if d := os.Getenv("DOMAIN"); d != "" {
			raw = domainURL(d)
		}
	}
	if raw == "" {
		raw = DefaultServerURL
	}
	return NormalizeServerURL(raw)
}

func domainURL(domain string) string {
	return fmt.Sprintf("wss://%s/ws", domain)
}

// NormalizeServerURL validates a signaling URL and fills in the scheme and
// the /ws path when missing. http(s) schemes are mapped to ws(s).
func NormalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL: %s", raw)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// RoomsURL returns the HTTP endpoint that lists active rooms on the same
// server as ServerURL.
func (c *Config) RoomsURL() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = "/rooms"
	u.RawQuery = ""
	return u.String()
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
