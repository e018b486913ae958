package service

import (
	"context"

	"finrecord/api/internal/models"
	"finrecord/api/internal/queue"
)

// AccountStore is the persistence surface the services need for accounts.
// Implemented by repository.AccountRepository.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	FindBySessionToken(ctx context.Context, token string) (models.Account, error)
	FindByRefreshToken(ctx context.Context, token string) (models.Account, error)
	CountByRegistrationIP(ctx context.Context, ip string) (int, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]models.Account, error)
	Create(ctx context.Context, account models.Account) error
	Save(ctx context.Context, account models.Account) error
	Delete(ctx context.Context, id string) error
}

// LicenseStore is implemented by repository.LicenseRepository. The *ForAccount
// methods pair the license write with the owning account's row in one
// transaction.
type LicenseStore interface {
	FindByID(ctx context.Context, id string) (models.License, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.License, error)
	Count(ctx context.Context, filter models.LicenseFilter) (int, error)
	Find(ctx context.Context, filter models.LicenseFilter, page models.Page) ([]models.License, error)
	FindOverdueCandidates(ctx context.Context, limit int) ([]models.License, error)
	Update(ctx context.Context, lic models.License) error
	UpdateStatus(ctx context.Context, id, status string) error
	GrantToAccount(ctx context.Context, lic models.License, account models.Account) error
	UpdateForAccount(ctx context.Context, lic models.License, account models.Account) error
	DeleteForAccount(ctx context.Context, id string, account models.Account) error
}

// RecordStore is implemented by repository.RecordRepository.
type RecordStore interface {
	FindByID(ctx context.Context, id string) (models.FinancialRecord, error)
	Count(ctx context.Context, filter models.RecordFilter) (int, error)
	Find(ctx context.Context, filter models.RecordFilter, page models.Page) ([]models.FinancialRecord, error)
	CreateForAccount(ctx context.Context, rec models.FinancialRecord, account models.Account) error
	Update(ctx context.Context, rec models.FinancialRecord) error
	DeleteForAccount(ctx context.Context, id string, account models.Account) error
}

// Enqueuer hands deferred work to the stream. A nil Producer is a no-op, so
// services can run without the queue wired.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}
