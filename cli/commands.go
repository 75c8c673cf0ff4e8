package main

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/option"

	"watchlater/auth"
	"watchlater/blocklist"
	"watchlater/config"
	"watchlater/curate"
	"watchlater/internal/logging"
	"watchlater/internal/transport"
	"watchlater/storage"
	"watchlater/youtube"
)

var (
	errNoSince    = errors.New("no cutoff date: pass --since or set since in the config")
	errNoPlaylist = errors.New("no target playlist: pass --playlist or set playlist_id in the config")
)

// pipelineOptions override the matching config keys when set.
type pipelineOptions struct {
	Since             string `long:"since" value-name:"YYYY-MM-DD" description:"Keep videos published on or after this local date"`
	Playlist          string `long:"playlist" value-name:"ID" description:"Playlist to append videos to"`
	ChannelsBlocklist string `long:"channels-blocklist" value-name:"FILE" description:"Channel titles to skip, one per line"`
	TitlesBlocklist   string `long:"titles-blocklist" value-name:"FILE" description:"Title substrings to skip, one per line"`
	OnInsertError     string `long:"on-insert-error" choice:"abort" choice:"continue" description:"Stop at the first failed insert or try every video"`
	UploadsSource     string `long:"uploads-source" choice:"api" choice:"feed" description:"List uploads with the Data API or the public feed"`
}

func (o pipelineOptions) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Since, o.Since)
	set(&cfg.PlaylistID, o.Playlist)
	set(&cfg.ChannelsBlocklist, o.ChannelsBlocklist)
	set(&cfg.TitlesBlocklist, o.TitlesBlocklist)
	set(&cfg.OnInsertError, o.OnInsertError)
	set(&cfg.UploadsSource, o.UploadsSource)
}

type runCommand struct {
	app      *app
	Pipeline pipelineOptions `group:"Pipeline Options"`
}

func (c *runCommand) Execute(args []string) error {
	cfg, err := c.app.setup(c.Pipeline)
	if err != nil {
		return err
	}
	if cfg.PlaylistID == "" {
		return errNoPlaylist
	}

	curator, yt, err := c.app.newCurator(cfg, false)
	if err != nil {
		return err
	}

	report, err := curator.Run(c.app.ctx)
	c.app.logReport(report, yt)
	return err
}

type previewCommand struct {
	app      *app
	Pipeline pipelineOptions `group:"Pipeline Options"`
}

func (c *previewCommand) Execute(args []string) error {
	cfg, err := c.app.setup(c.Pipeline)
	if err != nil {
		return err
	}

	curator, yt, err := c.app.newCurator(cfg, true)
	if err != nil {
		return err
	}

	report, err := curator.Run(c.app.ctx)
	c.app.logReport(report, yt)
	if err != nil {
		return err
	}

	loc, _ := cfg.Location()
	renderVideos(c.app.stdout, report.Videos, loc)
	return nil
}

type authCommand struct {
	app   *app
	Force bool `long:"force" description:"Sign in again even if a token is cached"`
}

func (c *authCommand) Execute(args []string) error {
	cfg, err := c.app.setup(pipelineOptions{})
	if err != nil {
		return err
	}

	authn, err := c.app.authenticator(cfg, c.app.httpClient(cfg))
	if err != nil {
		return err
	}
	if c.Force {
		_, err = authn.Login(c.app.ctx)
	} else {
		_, err = authn.Token(c.app.ctx)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.app.stdout, "Token cached in %s\n", cfg.TokenFile)
	return nil
}

type versionCommand struct {
	app *app
}

func (c *versionCommand) Execute(args []string) error {
	fmt.Fprintf(c.app.stdout, "watchlater %s\n", version)
	return nil
}

// setup initialises logging, loads the config and applies flag overrides.
func (a *app) setup(overrides pipelineOptions) (*config.Config, error) {
	log, err := logging.New(a.stderr, a.opts.LogLevel, a.opts.LogFormat)
	if err != nil {
		return nil, err
	}
	a.log = log

	cfg, err := config.Load(a.opts.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		a.log.Debug().Str("path", cfg.Path).Msg("loaded config")
	}

	overrides.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) httpClient(cfg *config.Config) *http.Client {
	tc := transport.DefaultConfig()
	tc.RequestsPerSecond = cfg.RequestsPerSecond
	tc.HostRates = cfg.HostRates
	tc.Timeout = cfg.RequestTimeout.Std()
	tc.UserAgent = "watchlater/" + version
	return transport.NewClient(tc)
}

func (a *app) authenticator(cfg *config.Config, httpClient *http.Client) (*auth.Authenticator, error) {
	authn, err := auth.New(cfg.ClientSecret, storage.NewTokenStore(cfg.TokenFile), httpClient, a.log)
	if err != nil {
		return nil, err
	}
	authn.Prompt = a.stderr
	return authn, nil
}

// newCurator resolves every run parameter and signs in. Nothing is fetched
// from YouTube yet.
func (a *app) newCurator(cfg *config.Config, dryRun bool) (*curate.Curator, *youtube.Client, error) {
	if cfg.Since == "" {
		return nil, nil, errNoSince
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	cutoff, err := curate.ParseCutoff(cfg.Since, loc)
	if err != nil {
		return nil, nil, err
	}
	policy, err := curate.ParseInsertPolicy(cfg.OnInsertError)
	if err != nil {
		return nil, nil, err
	}

	blocks, err := blocklist.Load(cfg.ChannelsBlocklist, cfg.TitlesBlocklist)
	if err != nil {
		return nil, nil, err
	}
	nChannels, nTitles := blocks.Len()
	a.log.Debug().Int("channels", nChannels).Int("titles", nTitles).Msg("loaded blocklists")

	base := a.httpClient(cfg)
	authn, err := a.authenticator(cfg, base)
	if err != nil {
		return nil, nil, err
	}
	authed, err := authn.Client(a.ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(authed)}, a.apiOptions...)
	yt, err := youtube.NewClient(a.ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	yt.SetPageSize(cfg.PageSize)
	yt.RetryConfig = cfg.RetryConfig()
	yt.Logger = a.log

	curator := &curate.Curator{
		API:          yt,
		Blocklists:   blocks,
		Cutoff:       cutoff,
		PlaylistID:   cfg.PlaylistID,
		InsertPolicy: policy,
		DryRun:       dryRun,
		Logger:       a.log,
	}
	if cfg.UploadsSource == config.UploadsFromFeed {
		feed := youtube.NewFeedClient(base)
		feed.RetryConfig = cfg.RetryConfig()
		curator.Uploads = feed
		a.log.Info().Msg("listing uploads from the public feed, only the latest 15 per channel are visible")
	}

	a.log.Info().
		Time("cutoff", cutoff).
		Str("playlist", cfg.PlaylistID).
		Bool("dry_run", dryRun).
		Msg("starting run")
	return curator, yt, nil
}

// logReport logs per-playlist failures and a one-line summary.
func (a *app) logReport(report *curate.Report, yt *youtube.Client) {
	if report == nil {
		return
	}
	for _, err := range report.SourceFailures {
		a.log.Warn().Err(err).Msg("playlist skipped")
	}

	a.log.Info().
		Str("run", report.RunID).
		Int("channels", report.Channels).
		Int("playlists", report.Sources).
		Int("videos", len(report.Videos)).
		Int("inserted", report.Inserted).
		Int("source_failures", len(report.SourceFailures)).
		Int("order_violations", report.OrderViolations).
		Int("quota_used", yt.QuotaUsed()).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("run finished")
}
