// Package deploy drives one deployment attempt per unit: workspace
// lifecycle, fetch, instruction document execution and durable status
// recording, with failures isolated per unit.
package deploy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/action"
	"github.com/delphi-ops/deploykit/pkg/config"
	"github.com/delphi-ops/deploykit/pkg/fetch"
	"github.com/delphi-ops/deploykit/pkg/header"
	"github.com/delphi-ops/deploykit/pkg/instruction"
	"github.com/delphi-ops/deploykit/pkg/report"
	"github.com/delphi-ops/deploykit/pkg/store"
)

// ErrCleanup is returned only when workspace teardown fails and nothing
// worse happened first.
var ErrCleanup = errors.Base("workspace cleanup failed")

// 📦 Unit is one deployable unit: a repository or a local package.
type Unit struct {
	Identity string // "owner/name", or "<local>/path" for packages
	URL      string // provenance URL announced before fetching
	Fetcher  fetch.Fetcher
}

// 🔧 Options configures a Deployer.
type Options struct {
	Config   *config.Config
	Store    store.Store
	Reporter *report.Reporter
}

// 🎯 Deployer owns the workspace of whichever unit it is processing and
// records every attempt's outcome exactly once.
type Deployer struct {
	cfg      *config.Config
	store    store.Store
	reporter *report.Reporter
	header   *header.Injector
}

// 🏭 New creates a Deployer.
func New(opts Options) (*Deployer, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Reporter == nil {
		return nil, errors.New("reporter is required")
	}
	return &Deployer{
		cfg:      opts.Config,
		store:    opts.Store,
		reporter: opts.Reporter,
		header:   header.New(),
	}, nil
}

// 🐙 RepoUnit builds the unit for a GitHub repository.
func (d *Deployer) RepoUnit(owner, name string) Unit {
	f := &fetch.GitFetcher{Owner: owner, Name: name, Timeout: d.cfg.CloneTimeout()}
	return Unit{Identity: owner + "/" + name, URL: f.URL(), Fetcher: f}
}

// 📦 PackageUnit builds the unit for a local tar/zip package.
func (d *Deployer) PackageUnit(path string) Unit {
	return Unit{Identity: "<local>/" + path, URL: "file://" + path, Fetcher: &fetch.ArchiveFetcher{Path: path}}
}

// 🏃 DeployUnit runs one deployment attempt. The workspace is destroyed on
// every exit path; teardown failure is suppressed in favor of any earlier
// error. The outcome (success, skipped or failed) is upserted to the
// status store exactly once before the error, if any, propagates.
func (d *Deployer) DeployUnit(ctx context.Context, u Unit) error {
	logger := zerolog.Ctx(ctx)

	var primary error
	outcome := store.OutcomeFailed
	var commit *string

	d.reporter.StartUnit(u.Identity, u.URL)

	workspace := filepath.Join(os.TempDir(), "deploykit-"+uuid.NewString())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		primary = errors.Errorf("creating workspace: %w", err)
	} else {
		outcome, commit, primary = d.attempt(ctx, u, workspace)
	}

	if err := os.RemoveAll(workspace); err != nil {
		cleanupErr := errors.Errorf("removing workspace %q: %w: %w", workspace, err, ErrCleanup)
		if primary == nil {
			primary = cleanupErr
		} else {
			logger.Warn().Err(cleanupErr).Msg("suppressing cleanup error in favor of earlier failure")
		}
	}

	if err := d.store.Upsert(ctx, u.Identity, commit, outcome); err != nil {
		logger.Error().Err(err).Str("unit", u.Identity).Msg("recording outcome failed")
		if primary == nil {
			primary = err
		}
	}

	return primary
}

// attempt performs fetch, validation and action execution inside an
// already-created workspace.
func (d *Deployer) attempt(ctx context.Context, u Unit, workspace string) (store.Outcome, *string, error) {
	res, err := u.Fetcher.Fetch(ctx, workspace)
	if err != nil {
		return store.OutcomeFailed, nil, err
	}
	commit := res.Commit

	docPath := filepath.Join(workspace, d.cfg.InstructionFile)
	if _, err := os.Stat(docPath); err != nil {
		d.reporter.UnitSkipped(u.Identity, "no instruction document ("+d.cfg.InstructionFile+")")
		return store.OutcomeSkipped, &commit, nil
	}

	if err := d.execute(ctx, workspace, docPath, res); err != nil {
		return store.OutcomeFailed, &commit, err
	}

	d.reporter.UnitSucceeded(u.Identity)
	return store.OutcomeSuccess, &commit, nil
}

// 🎬 execute walks the instruction document's action sequence in order.
// The first failing action aborts the rest; already-applied side effects
// stay in place.
func (d *Deployer) execute(ctx context.Context, workspace, docPath string, res fetch.Result) error {
	logger := zerolog.Ctx(ctx)

	doc, err := instruction.Load(docPath)
	if err != nil {
		return err
	}

	if doc.Skip {
		d.reporter.Detail("field `skip` is present and true - skipping deploy")
		return nil
	}

	if len(doc.Paths) > 0 {
		d.reporter.Detail("will substitute the following path fragments:")
		for _, sub := range doc.Paths {
			d.reporter.Detail("[[%s]] -> %s", sub.Key, sub.Value)
		}
	}

	env := &action.Env{
		RepoLink:  res.URL,
		Commit:    res.Commit,
		Workspace: workspace,
		Subs:      doc.Paths,
		Config:    d.cfg,
		Reporter:  d.reporter,
		Header:    d.header,
	}

	for i := range doc.Actions {
		a, ok, err := doc.Row(i)
		if err != nil {
			return err
		}
		if !ok {
			continue // comment row
		}
		logger.Debug().Int("position", i+1).Str("kind", string(a.Kind)).Msg("running action")
		if err := action.Execute(ctx, env, a); err != nil {
			return errors.Errorf("action %d/%d: %w", i+1, len(doc.Actions), err)
		}
	}
	return nil
}
