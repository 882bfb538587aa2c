package deploy

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🔁 DeployAll attempts every unit in order. A unit's failure is reported
// and retained but never stops the remaining units; after the loop the
// first captured failure is returned. Callers needing full detail should
// read the per-unit status records.
func (d *Deployer) DeployAll(ctx context.Context, units []Unit) error {
	var first error
	for _, u := range units {
		if err := d.DeployUnit(ctx, u); err != nil {
			d.reporter.UnitFailed(u.Identity, err)
			if first == nil {
				first = err
			}
		}
	}
	d.reporter.Summary()
	return first
}

// 🗃️ DeployQueued pulls all queued repositories from the status store and
// deploys them as one batch. An empty queue is a clean no-op.
func (d *Deployer) DeployQueued(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	repos, err := d.store.ListQueued(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		logger.Info().Msg("no repos to deploy")
		return nil
	}

	units := make([]Unit, 0, len(repos))
	for _, repo := range repos {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok {
			return errors.Errorf("malformed repo identity %q in status table", repo)
		}
		units = append(units, d.RepoUnit(owner, name))
	}

	logger.Info().Strs("repos", repos).Msg("will deploy queued repos")
	return d.DeployAll(ctx, units)
}
