// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ManuGH/streamgrab/internal/config"
	xglog "github.com/ManuGH/streamgrab/internal/log"
	"github.com/ManuGH/streamgrab/internal/version"
)

// cliFlags mirrors the config keys that can be overridden on the command line.
type cliFlags struct {
	configPath string

	logLevel  string
	logFormat string

	headers   []string
	cookies   []string
	query     []string
	userAgent string
	timeout   time.Duration
	rateLimit float64

	liveEdge       int
	workers        int
	attempts       int
	retryBase      time.Duration
	reloadInterval time.Duration
	startOffset    bool

	player          string
	playerArgs      string
	title           string
	transport       string
	noClose         bool
	playerHTTPHost  string
	playerHTTPPort  int
	playerPlayAfter bool

	output       string
	stdout       bool
	externalHTTP bool
	overwrite    bool
	record       string

	metricsAddr string
	tracing     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &cliFlags{}
	root := &cobra.Command{
		Use:   "streamgrab [flags] URL [QUALITY]",
		Short: "Extract a live or on-demand stream and play, save or serve it",
		Long: "streamgrab resolves URL to its available stream qualities and writes the\n" +
			"selected one (default \"best\") to a media player, a file, stdout or a\n" +
			"single local HTTP client. QUALITY may list fallbacks separated by commas.",
		Version:       version.Version,
		Args:          cobra.RangeArgs(1, 2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f, stderr)
			if err != nil {
				return err
			}
			req := streamRequest{URL: args[0], PlayAfter: f.playerPlayAfter}
			if len(args) > 1 {
				req.Quality = args[1]
			}
			return runStream(cmd.Context(), cfg, req, stdout)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("streamgrab {{.Version}}\n")

	bindPersistentFlags(root.PersistentFlags(), f)
	bindStreamFlags(root.Flags(), f)

	root.AddCommand(newConfigCmd(f), newInspectCmd(f, stdout), newVersionCmd(stdout))
	return root
}

func bindPersistentFlags(pf *pflag.FlagSet, f *cliFlags) {
	pf.StringVarP(&f.configPath, "config", "c", "", "config file (default "+config.DefaultPath()+" when present)")
	pf.StringVarP(&f.logLevel, "loglevel", "l", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", "", "log format: console or json")
}

func bindStreamFlags(fs *pflag.FlagSet, f *cliFlags) {
	fs.SortFlags = false
	fs.StringArrayVar(&f.headers, "http-header", nil, "add an HTTP header, KEY=VALUE (repeatable)")
	fs.StringArrayVar(&f.cookies, "http-cookie", nil, "add an HTTP cookie, KEY=VALUE (repeatable)")
	fs.StringArrayVar(&f.query, "http-query-param", nil, "add a query parameter, KEY=VALUE (repeatable)")
	fs.StringVar(&f.userAgent, "http-user-agent", "", "User-Agent header")
	fs.DurationVar(&f.timeout, "http-timeout", 0, "per-request timeout")
	fs.Float64Var(&f.rateLimit, "http-rate-limit", 0, "maximum requests per second, 0 for unlimited")

	fs.IntVar(&f.liveEdge, "hls-live-edge", 0, "segments from the live edge to start at")
	fs.IntVar(&f.workers, "stream-segment-threads", 0, "concurrent segment downloads (1-10)")
	fs.IntVar(&f.attempts, "stream-segment-attempts", 0, "attempts per segment, key and playlist request")
	fs.DurationVar(&f.retryBase, "stream-retry-base", 0, "first retry backoff")
	fs.DurationVar(&f.reloadInterval, "hls-playlist-reload-time", 0, "fixed live playlist reload interval")
	fs.BoolVar(&f.startOffset, "hls-start-offset", false, "honor EXT-X-START in on-demand playlists")

	fs.StringVarP(&f.player, "player", "p", "", "player executable")
	fs.StringVarP(&f.playerArgs, "player-args", "a", "", "player arguments; {playerinput} and {playertitleargs} are substituted")
	fs.StringVar(&f.title, "title", "", "player window title")
	fs.StringVar(&f.transport, "player-transport", "", "how the player reads the stream: stdin, namedpipe, http, file")
	fs.BoolVarP(&f.noClose, "player-no-close", "n", false, "leave the player running when the stream ends")
	fs.StringVar(&f.playerHTTPHost, "player-http-host", "", "listen host for the http transport")
	fs.IntVar(&f.playerHTTPPort, "player-http-port", 0, "listen port for the http and external-http outputs, 0 for random")
	fs.BoolVar(&f.playerPlayAfter, "player-play-after", false, "write the stream to --output, then run the player on the finished file")

	fs.StringVarP(&f.output, "output", "o", "", "write the stream to this file")
	fs.BoolVarP(&f.stdout, "stdout", "O", false, "write the stream to stdout")
	fs.BoolVar(&f.externalHTTP, "player-external-http", false, "serve the stream to one local HTTP client instead of starting a player")
	fs.BoolVarP(&f.overwrite, "force", "f", false, "overwrite existing output files")
	fs.StringVarP(&f.record, "record", "r", "", "also record the played stream to this file")

	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")
	fs.BoolVar(&f.tracing, "tracing", false, "export OpenTelemetry traces")
}

// loadConfig applies defaults, the config file, the environment and finally
// the flags the user set, then reconfigures logging.
func loadConfig(cmd *cobra.Command, f *cliFlags, stderr io.Writer) (config.AppConfig, error) {
	var loader *config.Loader
	if f.configPath != "" {
		loader = config.NewLoader(f.configPath)
	} else {
		loader = config.NewOptionalLoader(config.DefaultPath())
	}
	cfg, err := loader.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cmd.Flags(), f, &cfg); err != nil {
		return cfg, err
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}

	xglog.Reconfigure(xglog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  stderr,
		Service: "streamgrab",
		Version: version.Version,
	})
	if keys := loader.UnknownEnvKeys(); len(keys) > 0 {
		logger := xglog.WithComponent("config")
		logger.Warn().
			Strs("keys", keys).
			Msg("ignoring unknown STREAMGRAB_ environment variables")
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag that was explicitly set.
func applyFlags(fs *pflag.FlagSet, f *cliFlags, cfg *config.AppConfig) error {
	set := func(name string) bool {
		fl := fs.Lookup(name)
		return fl != nil && fl.Changed
	}

	if set("loglevel") {
		cfg.Log.Level = f.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = f.logFormat
	}

	var err error
	if set("http-header") {
		if cfg.HTTP.Headers, err = mergePairs(cfg.HTTP.Headers, f.headers, "--http-header"); err != nil {
			return err
		}
	}
	if set("http-cookie") {
		if cfg.HTTP.Cookies, err = mergePairs(cfg.HTTP.Cookies, f.cookies, "--http-cookie"); err != nil {
			return err
		}
	}
	if set("http-query-param") {
		if cfg.HTTP.Query, err = mergePairs(cfg.HTTP.Query, f.query, "--http-query-param"); err != nil {
			return err
		}
	}
	if set("http-user-agent") {
		cfg.HTTP.UserAgent = f.userAgent
	}
	if set("http-timeout") {
		cfg.HTTP.Timeout = f.timeout
	}
	if set("http-rate-limit") {
		cfg.HTTP.RateLimit = f.rateLimit
	}

	if set("hls-live-edge") {
		cfg.HLS.LiveEdge = f.liveEdge
	}
	if set("stream-segment-threads") {
		cfg.HLS.Workers = f.workers
	}
	if set("stream-segment-attempts") {
		cfg.HLS.Attempts = f.attempts
	}
	if set("stream-retry-base") {
		cfg.HLS.RetryBase = f.retryBase
	}
	if set("hls-playlist-reload-time") {
		cfg.HLS.ReloadInterval = f.reloadInterval
	}
	if set("hls-start-offset") {
		cfg.HLS.HonorStartOffset = f.startOffset
	}

	if set("player") {
		cfg.Player.Path = f.player
	}
	if set("player-args") {
		cfg.Player.Args = f.playerArgs
	}
	if set("title") {
		cfg.Player.Title = f.title
	}
	if set("player-transport") {
		cfg.Player.Transport = f.transport
	}
	if set("player-no-close") {
		cfg.Player.NoClose = f.noClose
	}
	if set("player-http-host") {
		cfg.Player.HTTPHost = f.playerHTTPHost
	}
	if set("player-http-port") {
		cfg.Player.HTTPPort = f.playerHTTPPort
	}

	switch {
	case f.stdout && f.output != "":
		return fmt.Errorf("--stdout and --output are mutually exclusive")
	case f.externalHTTP && (f.stdout || f.output != ""):
		return fmt.Errorf("--player-external-http cannot be combined with --stdout or --output")
	case f.playerPlayAfter && f.output == "":
		return fmt.Errorf("--player-play-after requires --output")
	case f.playerPlayAfter && f.record != "":
		return fmt.Errorf("--player-play-after cannot be combined with --record")
	case f.stdout:
		cfg.Output.Kind = "stdout"
	case f.output != "":
		cfg.Output.Kind = "file"
		cfg.Output.Path = f.output
	case f.externalHTTP:
		cfg.Output.Kind = "http"
	}
	if set("force") {
		cfg.Output.Overwrite = f.overwrite
	}
	if set("record") {
		cfg.Output.Record = f.record
	}

	if set("metrics-addr") {
		cfg.Metrics.Listen = f.metricsAddr
	}
	if set("tracing") {
		cfg.Telemetry.Enabled = f.tracing
	}
	return nil
}

// mergePairs parses KEY=VALUE arguments over base.
func mergePairs(base map[string]string, pairs []string, flag string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(pairs))
	for k, v := range base {
		out[k] = v
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%s: expected KEY=VALUE, got %q", flag, p)
		}
		out[k] = v
	}
	return out, nil
}
