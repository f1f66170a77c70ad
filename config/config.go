// Package config loads exchange settings from YAML.
//
//	redirect:
//	  follow: true
//	  strict_302: false
//	  max_redirects: 5
//	keep_alive: true
//	timeout:
//	  idle: 90s
//	  response_header: 10s
//	  dial: 5s
//	headers:
//	  - name: User-Agent
//	    value: hexchange
//	remove_on_redirect: [X-Redirect]
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"http-exchange/application/http/actor/client"
	"http-exchange/application/http/filter"
	"http-exchange/application/http/keepalive"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Redirect  Redirect `yaml:"redirect"`
	KeepAlive *bool    `yaml:"keep_alive"`
	Send      Send     `yaml:"send"`
	Receive   Receive  `yaml:"receive"`
	Conn      Conn     `yaml:"conn"`
	Timeout   Timeout  `yaml:"timeout"`

	// Headers are set on every attempt.
	Headers []Header `yaml:"headers"`
	// RemoveOnRedirect names fields dropped from redirected attempts.
	RemoveOnRedirect []string `yaml:"remove_on_redirect"`
}

type Redirect struct {
	Follow                       *bool `yaml:"follow"`
	Strict302                    bool  `yaml:"strict_302"`
	MaxRedirects                 *uint `yaml:"max_redirects"`
	KeepCredentialsAcrossOrigins bool  `yaml:"keep_credentials_across_origins"`
}

type Send struct {
	SuspendRetry time.Duration `yaml:"suspend_retry"`
	UseSoleLF    bool          `yaml:"use_sole_lf"`
}

type Receive struct {
	AllowSoleLF             bool  `yaml:"allow_sole_lf"`
	LenientWhitespace       bool  `yaml:"lenient_whitespace"`
	UseReceivedReasonPhrase bool  `yaml:"use_received_reason_phrase"`
	MaxFieldLineLength      *uint `yaml:"max_field_line_length"`
	MaxFieldCount           *uint `yaml:"max_field_count"`
	MaxStartLineLength      *uint `yaml:"max_start_line_length"`
}

type Conn struct {
	MaxIdlePerHost *uint `yaml:"max_idle_per_host"`
}

type Timeout struct {
	Idle           time.Duration `yaml:"idle"`
	ResponseHeader time.Duration `yaml:"response_header"`
	Dial           time.Duration `yaml:"dial"`
}

type Header struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

var ErrInvalid = errors.New("invalid configuration")

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
// An empty document yields the defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decoding yaml")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for name, d := range map[string]time.Duration{
		"send.suspend_retry":      c.Send.SuspendRetry,
		"timeout.idle":            c.Timeout.Idle,
		"timeout.response_header": c.Timeout.ResponseHeader,
		"timeout.dial":            c.Timeout.Dial,
	} {
		if d < 0 {
			return errors.Wrapf(ErrInvalid, "%s is negative", name)
		}
	}

	for i, h := range c.Headers {
		if h.Name == "" {
			return errors.Wrapf(ErrInvalid, "headers[%d] has no name", i)
		}
	}
	return nil
}

// Options applies the configuration over [client.DefaultOptions].
func (c *Config) Options() client.Options {
	opts := client.DefaultOptions()

	if c.Redirect.Follow != nil {
		opts.Redirect.Enabled = *c.Redirect.Follow
	}
	if c.Redirect.MaxRedirects != nil {
		opts.Redirect.MaxRedirects = *c.Redirect.MaxRedirects
	}
	opts.Redirect.Strict302 = c.Redirect.Strict302
	opts.Redirect.KeepCredentialsAcrossOrigins = c.Redirect.KeepCredentialsAcrossOrigins

	if c.KeepAlive != nil && !*c.KeepAlive {
		opts.KeepAlive = keepalive.Never
	}

	if c.Send.SuspendRetry > 0 {
		opts.Send.SuspendRetry = c.Send.SuspendRetry
	}
	opts.Send.Encode.UseSoleLF = c.Send.UseSoleLF

	opts.Receive.Decode.AllowSoleLF = c.Receive.AllowSoleLF
	opts.Receive.Decode.LenientWhitespace = c.Receive.LenientWhitespace
	opts.Receive.UseReceivedReasonPhrase = c.Receive.UseReceivedReasonPhrase
	setUint(&opts.Receive.Decode.MaxFieldLineLength, c.Receive.MaxFieldLineLength)
	setUint(&opts.Receive.Decode.MaxFieldCount, c.Receive.MaxFieldCount)
	setUint(&opts.Receive.Decode.MaxStartLineLength, c.Receive.MaxStartLineLength)

	setUint(&opts.Conn.MaxIdleConnsPerHost, c.Conn.MaxIdlePerHost)

	if c.Timeout.Idle > 0 {
		opts.Timeout.IdleTimeout = c.Timeout.Idle
	}
	opts.Timeout.ResponseHeader = c.Timeout.ResponseHeader

	var filters []filter.Filter
	for _, h := range c.Headers {
		filters = append(filters, filter.SetHeader(h.Name, h.Value))
	}
	for _, name := range c.RemoveOnRedirect {
		filters = append(filters, filter.RemoveHeader(name))
	}
	opts.Filters = filter.NewChain(filters...)

	return opts
}

func setUint(dst *uint, v *uint) {
	if v != nil {
		*dst = *v
	}
}
