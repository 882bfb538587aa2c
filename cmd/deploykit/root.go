package main

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/config"
	"github.com/delphi-ops/deploykit/pkg/deploy"
	"github.com/delphi-ops/deploykit/pkg/report"
	"github.com/delphi-ops/deploykit/pkg/store"
)

var (
	// Flags
	configFile   string
	repoFlag     string
	packageFlag  string
	databaseFlag bool
	debug        bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploykit",
		Short: "fetch repos or packages and deploy them per their instruction document",
		Long: `deploykit fetches a deployment unit (a GitHub repository or a local
tar/zip package), reads the instruction document at its root and executes
the listed actions in order, recording the outcome in the status table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot()
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "deploykit.yaml", "config file path (json, yaml or hcl)")
	cmd.Flags().StringVar(&repoFlag, "repo", "", "deploy a single GitHub repository (owner/name)")
	cmd.Flags().StringVar(&packageFlag, "package", "", "deploy a local tar/zip package")
	cmd.Flags().BoolVar(&databaseFlag, "database", false, "deploy every repo queued in the status table")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	return cmd
}

// setupLogging configures zerolog based on flags
func setupLogging() context.Context {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
	return log.WithContext(context.Background())
}

// validateSource enforces that exactly one deployment source was selected.
func validateSource(database bool, repo, pkg string) error {
	selected := 0
	if database {
		selected++
	}
	if repo != "" {
		selected++
	}
	if pkg != "" {
		selected++
	}
	if selected != 1 {
		return errors.New("exactly one of --database, --repo or --package is required")
	}
	if repo != "" {
		if _, _, err := splitRepo(repo); err != nil {
			return err
		}
	}
	return nil
}

// splitRepo splits an "owner/name" identity.
func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", errors.Errorf("malformed repo %q, want owner/name", repo)
	}
	return owner, name, nil
}

func runRoot() error {
	if err := validateSource(databaseFlag, repoFlag, packageFlag); err != nil {
		return err
	}

	ctx := setupLogging()
	logger := zerolog.Ctx(ctx)

	cfg, err := config.Load(ctx, configFile)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return errors.Errorf("opening status store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing status store")
		}
	}()

	deployer, err := deploy.New(deploy.Options{
		Config:   cfg,
		Store:    st,
		Reporter: report.New(os.Stdout, *logger),
	})
	if err != nil {
		return err
	}

	switch {
	case databaseFlag:
		return deployer.DeployQueued(ctx)
	case repoFlag != "":
		owner, name, _ := splitRepo(repoFlag)
		return deployer.DeployUnit(ctx, deployer.RepoUnit(owner, name))
	default:
		return deployer.DeployUnit(ctx, deployer.PackageUnit(packageFlag))
	}
}
