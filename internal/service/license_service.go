package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"finrecord/api/internal/ids"
	"finrecord/api/internal/models"
	"finrecord/api/internal/queue"
	"finrecord/api/internal/repository"
)

// LicenseService manages per-account licenses. Expiry is reconciled lazily on
// read: the first read past the deadline persists the expired status, and the
// owning account's mirrored options key is brought up to date through the
// background queue.
type LicenseService struct {
	accounts AccountStore
	licenses LicenseStore
	tasks    Enqueuer
	log      zerolog.Logger
	now      func() time.Time
}

func NewLicenseService(accounts AccountStore, licenses LicenseStore, tasks Enqueuer, log zerolog.Logger) *LicenseService {
	return &LicenseService{
		accounts: accounts,
		licenses: licenses,
		tasks:    tasks,
		log:      log.With().Str("component", "licenses").Logger(),
		now:      time.Now,
	}
}

// resolveStatus computes the effective status at now. The second return is
// true only on the expired transition, never for already-expired licenses.
func resolveStatus(lic models.License, now time.Time) (string, bool) {
	if lic.Status == models.LicenseStatusExpired {
		return lic.Status, false
	}
	if expiry, ok := lic.ExpiryTime(); ok && now.After(expiry) {
		return models.LicenseStatusExpired, true
	}
	return lic.Status, false
}

func (s *LicenseService) findOwner(ctx context.Context, accountID string) (models.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, ErrUserNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}

// reconcile persists the expired transition and, when the owner's mirrored
// key disagrees, queues a mirror task. The mirror is fire and forget; a queue
// failure is logged and does not fail the read.
func (s *LicenseService) reconcile(ctx context.Context, lic models.License, owner models.Account) models.License {
	status, transitioned := resolveStatus(lic, s.now())
	if !transitioned {
		return lic
	}
	lic.Status = status

	if err := s.licenses.UpdateStatus(ctx, lic.ID, status); err != nil {
		s.log.Error().Err(err).Str("license_id", lic.ID).Msg("persist expiry failed")
	}

	if owner.OptionString(lic.MirrorKey()) != models.LicenseStatusExpired {
		task := queue.Task{
			Type:      queue.TaskMirrorStatus,
			AccountID: owner.ID,
			LicenseID: lic.ID,
			ToolName:  lic.ToolName,
			Status:    status,
		}
		if err := s.tasks.Enqueue(ctx, task); err != nil {
			s.log.Error().Err(err).Str("license_id", lic.ID).Msg("enqueue mirror failed")
		}
	}
	return lic
}

// ListForAccount returns the account's licenses matching the filter plus the
// unpaged total for the count header.
func (s *LicenseService) ListForAccount(ctx context.Context, accountID string, filter models.LicenseFilter, page models.Page) ([]models.License, int, error) {
	owner, err := s.findOwner(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	filter.AccountID = accountID
	total, err := s.licenses.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	licenses, err := s.licenses.Find(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}

	for i := range licenses {
		licenses[i] = s.reconcile(ctx, licenses[i], owner)
	}
	return licenses, total, nil
}

// GetForAccount returns one license after an ownership check against the
// account's owned list.
func (s *LicenseService) GetForAccount(ctx context.Context, accountID, licenseID string) (models.License, error) {
	owner, err := s.findOwner(ctx, accountID)
	if err != nil {
		return models.License{}, err
	}
	if !owner.HasLicense(licenseID) {
		return models.License{}, ErrRecordMissing
	}

	lic, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			return models.License{}, ErrRecordMissing
		}
		return models.License{}, err
	}
	return s.reconcile(ctx, lic, owner), nil
}

// GrantInput is the creation body. Email stands in for the account id when
// the path carries none.
type GrantInput struct {
	models.License
	Email string `json:"email"`
}

// Grant creates a license and links it to the account atomically: the owned
// list gains the id and the options map gains the mirrored status key.
func (s *LicenseService) Grant(ctx context.Context, accountID string, in GrantInput) (models.License, error) {
	var account models.Account
	var err error
	if accountID != "" {
		account, err = s.findOwner(ctx, accountID)
	} else {
		account, err = s.accounts.FindByEmail(ctx, in.Email)
		if errors.Is(err, repository.ErrAccountNotFound) {
			err = ErrUserNotFound
		}
	}
	if err != nil {
		return models.License{}, err
	}

	lic := in.License
	lic.ID = ids.NewLicense()
	lic.AccountID = account.ID

	account.Licenses = append(account.Licenses, lic.ID)
	account.SetOption(lic.MirrorKey(), lic.Status)

	if err := s.licenses.GrantToAccount(ctx, lic, account); err != nil {
		return models.License{}, err
	}

	s.log.Info().Str("license_id", lic.ID).Str("account_id", account.ID).Msg("license granted")
	return lic, nil
}

// LicensePatch updates a subset of license fields; nil fields are left alone.
type LicensePatch struct {
	ProductID           *string   `json:"productId"`
	Status              *string   `json:"status"`
	ModifyDateActivated *string   `json:"modifyDateActivated"`
	ActivationDays      *int      `json:"activationDays"`
	ExpiresAt           *string   `json:"expiresAt"`
	CurrentPlan         *string   `json:"currentPlan"`
	CurrentPrice        *string   `json:"currentPrice"`
	PlanHistory         *[]string `json:"historyLicenseBough"`
	ToolName            *string   `json:"toolName"`
	Category            *string   `json:"category"`
	PaymentMethod       *string   `json:"paymentMethod"`
	Note                *string   `json:"note"`
}

func (p LicensePatch) apply(lic models.License) models.License {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&lic.ProductID, p.ProductID)
	setStr(&lic.Status, p.Status)
	setStr(&lic.ModifyDateActivated, p.ModifyDateActivated)
	setStr(&lic.CurrentPlan, p.CurrentPlan)
	setStr(&lic.CurrentPrice, p.CurrentPrice)
	setStr(&lic.ToolName, p.ToolName)
	setStr(&lic.Category, p.Category)
	setStr(&lic.PaymentMethod, p.PaymentMethod)
	setStr(&lic.Note, p.Note)
	if p.ActivationDays != nil {
		lic.ActivationDays = *p.ActivationDays
	}
	if p.ExpiresAt != nil {
		lic.ExpiresAt = p.ExpiresAt
	}
	if p.PlanHistory != nil {
		lic.PlanHistory = *p.PlanHistory
	}
	return lic
}

// Update patches the license. A status change additionally rewrites the
// owner's mirrored key, in the same transaction as the license row.
func (s *LicenseService) Update(ctx context.Context, accountID, licenseID string, patch LicensePatch) (models.License, error) {
	account, err := s.findOwner(ctx, accountID)
	if err != nil {
		return models.License{}, err
	}

	lic, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			return models.License{}, ErrRecordMissing
		}
		return models.License{}, err
	}

	lic = patch.apply(lic)
	lic.AccountID = accountID

	if patch.Status != nil {
		account.SetOption(lic.MirrorKey(), lic.Status)
		if err := s.licenses.UpdateForAccount(ctx, lic, account); err != nil {
			return models.License{}, err
		}
		return lic, nil
	}

	if err := s.licenses.Update(ctx, lic); err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			return models.License{}, ErrRecordMissing
		}
		return models.License{}, err
	}
	return lic, nil
}

// Delete removes the license together with the owner's list entry and
// mirrored options key.
func (s *LicenseService) Delete(ctx context.Context, accountID, licenseID string) error {
	account, err := s.findOwner(ctx, accountID)
	if err != nil {
		return err
	}
	if _, err := s.licenses.FindByID(ctx, licenseID); err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			return ErrRecordMissing
		}
		return err
	}

	account.RemoveLicense(licenseID)
	if err := s.licenses.DeleteForAccount(ctx, licenseID, account); err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			return ErrRecordMissing
		}
		return err
	}
	return nil
}
