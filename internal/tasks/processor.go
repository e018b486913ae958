package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"finrecord/api/internal/models"
	"finrecord/api/internal/queue"
	"finrecord/api/internal/repository"
	"finrecord/api/internal/service"
)

// sweepBatch bounds how many licenses one sweep task examines.
const sweepBatch = 500

// Processor executes the deferred entitlement work dequeued by the worker:
// mirroring license statuses onto account options and bulk-expiring overdue
// licenses.
type Processor struct {
	accounts service.AccountStore
	licenses service.LicenseStore
	logger   zerolog.Logger
	now      func() time.Time
}

func NewProcessor(accounts service.AccountStore, licenses service.LicenseStore, logger zerolog.Logger) *Processor {
	return &Processor{
		accounts: accounts,
		licenses: licenses,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskMirrorStatus:
		return p.handleMirror(ctx, task)
	case queue.TaskExpirySweep:
		return p.handleSweep(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
}

// handleMirror writes the license status under the account's mirrored options
// key. Re-delivery is harmless: an already-matching key is left untouched.
func (p *Processor) handleMirror(ctx context.Context, task queue.Task) error {
	account, err := p.accounts.FindByID(ctx, task.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			p.logger.Warn().Str("account_id", task.AccountID).Msg("mirror target gone")
			return nil
		}
		return err
	}

	key := task.ToolName + "-" + task.LicenseID
	if account.OptionString(key) == task.Status {
		return nil
	}
	account.SetOption(key, task.Status)
	if err := p.accounts.Save(ctx, account); err != nil {
		return err
	}

	p.logger.Info().
		Str("account_id", task.AccountID).
		Str("license_id", task.LicenseID).
		Str("status", task.Status).
		Msg("status mirrored")
	return nil
}

// handleSweep expires every overdue license in one pass, mirroring each
// transition onto its owner inline instead of re-queueing.
func (p *Processor) handleSweep(ctx context.Context) error {
	candidates, err := p.licenses.FindOverdueCandidates(ctx, sweepBatch)
	if err != nil {
		return err
	}

	now := p.now()
	expired := 0
	for _, lic := range candidates {
		due, ok := lic.ExpiryTime()
		if !ok || now.Before(due) {
			continue
		}
		if err := p.licenses.UpdateStatus(ctx, lic.ID, models.LicenseStatusExpired); err != nil {
			p.logger.Error().Err(err).Str("license_id", lic.ID).Msg("expire failed")
			continue
		}
		expired++

		mirror := queue.Task{
			Type:      queue.TaskMirrorStatus,
			AccountID: lic.AccountID,
			LicenseID: lic.ID,
			ToolName:  lic.ToolName,
			Status:    models.LicenseStatusExpired,
		}
		if err := p.handleMirror(ctx, mirror); err != nil {
			p.logger.Error().Err(err).Str("license_id", lic.ID).Msg("mirror after expire failed")
		}
	}

	p.logger.Info().Int("scanned", len(candidates)).Int("expired", expired).Msg("expiry sweep done")
	return nil
}
