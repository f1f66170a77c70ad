package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"http-exchange/application/http"
	"http-exchange/application/http/actor/client"
	"http-exchange/application/http/body"
	"http-exchange/application/http/semantic"
	"http-exchange/config"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type fetchFlags struct {
	method       string
	data         string
	dataFile     string
	headers      []string
	follow       bool
	strict302    bool
	maxRedirects uint
	configPath   string
	include      bool
	noColor      bool
	verbose      bool
	rate         int
	timeout      time.Duration
}

type dialConfig struct {
	timeout time.Duration
}

func newFetchCmd(e env) *cobra.Command {
	var f fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Send a request and print the final response",
		Long: `Send a request and print the final response.

Examples:
  hexchange fetch http://example.com/
  hexchange fetch -X POST -d 'a=1' -H 'Content-Type: application/x-www-form-urlencoded' http://example.com/form
  hexchange fetch --strict-302 --max-redirects 3 http://example.com/moved`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, e, f, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.method, "request", "X", "", "request method (default GET, or POST with data)")
	flags.StringVarP(&f.data, "data", "d", "", "request body")
	flags.StringVar(&f.dataFile, "data-file", "", "read the request body from a file")
	flags.StringArrayVarP(&f.headers, "header", "H", nil, "request header as 'Name: value', repeatable")
	flags.BoolVar(&f.follow, "follow", true, "follow redirects")
	flags.BoolVar(&f.strict302, "strict-302", false, "keep method and body on 302")
	flags.UintVar(&f.maxRedirects, "max-redirects", 5, "maximum number of redirects to follow")
	flags.StringVar(&f.configPath, "config", "", "YAML configuration file")
	flags.BoolVarP(&f.include, "include", "i", false, "print response headers")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log exchange progress to stderr")
	flags.IntVar(&f.rate, "rate", 0, "limit the upload to this many bytes per second")
	flags.DurationVar(&f.timeout, "timeout", 30*time.Second, "timeout of the whole exchange")

	return cmd
}

func runFetch(cmd *cobra.Command, e env, f fetchFlags, rawURL string) error {
	cfg := &config.Config{}
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return errors.Wrap(errConfig, err.Error())
		}
		cfg = loaded
	}

	opts := cfg.Options()
	flags := cmd.Flags()
	if flags.Changed("follow") || f.configPath == "" {
		opts.Redirect.Enabled = f.follow
	}
	if flags.Changed("strict-302") {
		opts.Redirect.Strict302 = f.strict302
	}
	if flags.Changed("max-redirects") || f.configPath == "" {
		opts.Redirect.MaxRedirects = f.maxRedirects
	}

	req, err := buildRequest(e, f, rawURL)
	if err != nil {
		return errors.Wrap(errConfig, err.Error())
	}

	logger := newLogger(e.stderr, f.verbose)
	t := client.NewConnTransport(e.dialer(dialConfig{timeout: cfg.Timeout.Dial}), logger, e.clock, opts)
	defer t.CloseIdleConns()

	ctx, cancel := e.clock.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	res, err := client.New(t, logger, opts).Do(ctx, req)
	if err != nil {
		var transportErr *client.TransportError
		if errors.As(err, &transportErr) {
			return errors.Wrap(errNetwork, err.Error())
		}
		return err
	}
	defer res.Close()

	return printResult(cmd.OutOrStdout(), res, f)
}

func buildRequest(e env, f fetchFlags, rawURL string) (*semantic.Request, error) {
	var src body.Source
	switch {
	case f.data != "" && f.dataFile != "":
		return nil, errors.New("--data and --data-file are exclusive")
	case f.data != "":
		src = body.String(f.data)
	case f.dataFile != "":
		file, err := body.File(f.dataFile)
		if err != nil {
			return nil, err
		}
		src = file
	}

	if src != nil && f.rate > 0 {
		src = body.Throttle(src, rate.NewLimiter(rate.Limit(f.rate), f.rate), e.clock)
	}

	method := semantic.Method(strings.ToUpper(f.method))
	if method == "" {
		method = semantic.MethodGet
		if src != nil {
			method = semantic.MethodPost
		}
	}

	fields := make([]http.Field, 0, len(f.headers))
	for _, raw := range f.headers {
		field, err := http.ParseField([]byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "header %q", raw)
		}
		fields = append(fields, field)
	}

	return semantic.NewRequest(method, rawURL, src, fields...)
}

func printResult(w io.Writer, res *client.Result, f fetchFlags) error {
	if f.noColor {
		color.NoColor = true
	}

	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	status := res.Response.Status
	var paint func(a ...interface{}) string
	switch {
	case status.IsSuccessful():
		paint = color.New(color.FgGreen, color.Bold).SprintFunc()
	case status.IsRedirection():
		paint = color.New(color.FgYellow, color.Bold).SprintFunc()
	case status.IsClientError(), status.IsServerError():
		paint = color.New(color.FgRed, color.Bold).SprintFunc()
	default:
		paint = bold
	}

	fmt.Fprintf(w, "%s %s\n", res.Response.Version, paint(status.String()))
	fmt.Fprintf(w, "%s %s  %s %d  %s %t\n",
		faint("url:"), res.URI.String(),
		faint("redirects:"), res.Redirects,
		faint("keep-alive:"), res.KeepAlive,
	)

	if f.include {
		for _, field := range res.Response.Headers.Fields() {
			fmt.Fprintf(w, "%s: %s\n", bold(field.Name), field.Value)
		}
	}
	fmt.Fprintln(w)

	if _, err := io.Copy(w, res.Response.Body); err != nil {
		return errors.Wrap(err, "reading response body")
	}
	return nil
}
