package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/travelerpub/internal/adapter/driven/arcgis"
	"github.com/ericfisherdev/travelerpub/internal/adapter/driven/packager"
	sqliteadapter "github.com/ericfisherdev/travelerpub/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/travelerpub/internal/adapter/driven/traveler"
	"github.com/ericfisherdev/travelerpub/internal/application"
	"github.com/ericfisherdev/travelerpub/internal/config"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
	"github.com/ericfisherdev/travelerpub/internal/logging"
)

// app holds the adapters shared by every command.
type app struct {
	cfg         *config.Config
	db          *sqliteadapter.DB
	runs        *sqliteadapter.RunRepo
	jobs        *sqliteadapter.JobRepo
	credentials *sqliteadapter.CredentialRepo
}

// openApp loads the configuration, installs the logger and opens the
// migrated database.
func openApp() (*app, error) {
	// 1. Load configuration (fail fast on invalid values).
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Logging.
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if _, err := logging.Setup(level, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	slog.Debug("config loaded",
		"root_uri", cfg.RootURI,
		"db_path", cfg.DBPath,
		"package_path", cfg.PackagePath,
		"staging_dir", cfg.StagingDir,
		"title", cfg.Settings.Title,
	)

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{
		cfg:         cfg,
		db:          db,
		runs:        sqliteadapter.NewRunRepo(db),
		jobs:        sqliteadapter.NewJobRepo(db),
		credentials: sqliteadapter.NewCredentialRepo(db, cfg.SecretKey),
	}, nil
}

// Close releases the database.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// portal resolves the portal credential and builds the token manager and
// the rate-limited portal client.
func (a *app) portal(ctx context.Context) (*arcgis.TokenManager, *arcgis.Client, error) {
	cred, err := application.ResolveCredential(ctx, a.credentials, a.cfg.Credential())
	if err != nil {
		return nil, nil, err
	}

	tokens := arcgis.NewTokenManager(cred)
	client := arcgis.NewClient(tokens, arcgis.WithRateLimit(a.cfg.RateLimit, 1))
	slog.Debug("portal client created", "username", cred.Username, "root_uri", tokens.RootURI())
	return tokens, client, nil
}

// jobRunner creates a JobRunner polling with the configured limits.
func (a *app) jobRunner(client driven.JobClient) *application.JobRunner {
	return application.NewJobRunner(client, application.JobRunnerConfig{
		Interval:    a.cfg.JobPollInterval,
		Timeout:     a.cfg.JobTimeout,
		MaxAttempts: a.cfg.JobMaxAttempts,
	})
}

// syncService creates the publish workflow. Feeds are only fetched when an
// access code is configured; otherwise the staging directory is used as is.
func (a *app) syncService(client *arcgis.Client) *application.SyncService {
	var fetcher driven.FeedFetcher
	if a.cfg.AccessCode != "" {
		fetcher = traveler.NewFetcher(a.cfg.AccessCode, a.cfg.Feeds)
	} else {
		slog.Info("no traveler API access code configured, skipping feed download")
	}

	return application.NewSyncService(
		client,
		a.jobRunner(client),
		fetcher,
		packager.NewBuilder(a.cfg.BuildCommand),
		a.runs,
		a.jobs,
		application.SyncConfig{
			StagingDir:  a.cfg.StagingDir,
			PackagePath: a.cfg.PackagePath,
			Settings:    a.cfg.Settings,
			Interval:    a.cfg.SyncInterval,
		},
	)
}
