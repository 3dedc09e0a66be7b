// Package main implements the devjournal CLI: a self-improving debugging
// journal that records work sessions, ingests test reports, watches for
// file changes and distills recurring failures into playbooks.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devjournal/internal/catalog"
	"github.com/fyrsmithlabs/devjournal/internal/config"
	"github.com/fyrsmithlabs/devjournal/internal/ingest"
	"github.com/fyrsmithlabs/devjournal/internal/logging"
	"github.com/fyrsmithlabs/devjournal/internal/reflector"
	"github.com/fyrsmithlabs/devjournal/internal/store"
)

var (
	cfgPath string
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devjournal",
	Short: "A self-improving debugging journal",
	Long: `devjournal records debugging sessions, test runs and file changes,
then reflects on completed sessions to learn which strategies actually
fix which errors. Knowledge accumulates as confidence-scored playbooks.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.config/devjournal/config.yaml)")
}

// app bundles the wiring every command needs: config, logger, store,
// project catalog and the services on top.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	catalog  *catalog.Catalog
	reflect  *reflector.Service
	ingestor *ingest.Ingestor
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.Open(cfg.Storage.Path, logger)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		catalog:  cat,
		reflect:  reflector.NewService(st, reflector.WithLogger(logger)),
		ingestor: ingest.NewIngestor(st, cat, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// resolveProject finds the project for the working directory when the user
// did not name one explicitly.
func (a *app) resolveProject(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	p, err := a.catalog.Resolve(wd)
	if err != nil {
		return "", fmt.Errorf("no project for %s; pass --project or add one with 'devjournal project add'", wd)
	}
	return p.ID, nil
}

// resolveSession picks the explicit session id, or the active session of
// the resolved project.
func (a *app) resolveSession(ctx context.Context, sessionFlag, projectFlag string) (string, error) {
	if sessionFlag != "" {
		return sessionFlag, nil
	}
	projectID, err := a.resolveProject(projectFlag)
	if err != nil {
		return "", err
	}
	sess, err := a.store.ActiveSession(ctx, projectID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", fmt.Errorf("no active session for project %s; start one with 'devjournal session start'", projectID)
	}
	return sess.ID, nil
}
