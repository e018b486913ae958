package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"finrecord/api/internal/ids"
	"finrecord/api/internal/models"
	"finrecord/api/internal/repository"
)

// RecordService manages the plain bookkeeping entries owned by an account.
type RecordService struct {
	accounts AccountStore
	records  RecordStore
	log      zerolog.Logger
}

func NewRecordService(accounts AccountStore, records RecordStore, log zerolog.Logger) *RecordService {
	return &RecordService{
		accounts: accounts,
		records:  records,
		log:      log.With().Str("component", "records").Logger(),
	}
}

func (s *RecordService) findOwner(ctx context.Context, accountID string) (models.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, ErrUserNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}

func (s *RecordService) ListForAccount(ctx context.Context, accountID string, filter models.RecordFilter, page models.Page) ([]models.FinancialRecord, int, error) {
	if _, err := s.findOwner(ctx, accountID); err != nil {
		return nil, 0, err
	}

	filter.AccountID = accountID
	total, err := s.records.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	records, err := s.records.Find(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// CreateInput is the record creation body. Email stands in for the account id
// when the path carries none.
type CreateRecordInput struct {
	models.FinancialRecord
	Email string `json:"email"`
}

// Create inserts the record and appends its id to the owner's list in one
// transaction.
func (s *RecordService) Create(ctx context.Context, accountID string, in CreateRecordInput) (models.FinancialRecord, error) {
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
		return models.FinancialRecord{}, err
	}

	rec := in.FinancialRecord
	rec.ID = ids.NewRecord()
	rec.AccountID = account.ID
	account.Records = append(account.Records, rec.ID)

	if err := s.records.CreateForAccount(ctx, rec, account); err != nil {
		return models.FinancialRecord{}, err
	}
	return rec, nil
}

// RecordPatch updates a subset of record fields; nil fields are left alone.
type RecordPatch struct {
	Date           *string  `json:"date"`
	UpdatedDate    *string  `json:"updatedDate"`
	Amount         *float64 `json:"amount"`
	OriginalAmount *float64 `json:"originalAmount"`
	Currency       *string  `json:"currency"`
	Category       *string  `json:"category"`
	ChildCategory  *string  `json:"childCategory"`
	PaymentMethod  *string  `json:"paymentMethod"`
	Note           *string  `json:"note"`
}

func (p RecordPatch) apply(rec models.FinancialRecord) models.FinancialRecord {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&rec.Date, p.Date)
	setStr(&rec.UpdatedDate, p.UpdatedDate)
	setStr(&rec.Currency, p.Currency)
	setStr(&rec.Category, p.Category)
	setStr(&rec.ChildCategory, p.ChildCategory)
	setStr(&rec.PaymentMethod, p.PaymentMethod)
	setStr(&rec.Note, p.Note)
	if p.Amount != nil {
		rec.Amount = *p.Amount
	}
	if p.OriginalAmount != nil {
		rec.OriginalAmount = p.OriginalAmount
	}
	return rec
}

func (s *RecordService) Update(ctx context.Context, accountID, recordID string, patch RecordPatch) (models.FinancialRecord, error) {
	if _, err := s.findOwner(ctx, accountID); err != nil {
		return models.FinancialRecord{}, err
	}

	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return models.FinancialRecord{}, ErrRecordMissing
		}
		return models.FinancialRecord{}, err
	}

	rec = patch.apply(rec)
	rec.AccountID = accountID
	if err := s.records.Update(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return models.FinancialRecord{}, ErrRecordMissing
		}
		return models.FinancialRecord{}, err
	}
	return rec, nil
}

// Delete removes the record together with the owner's list entry.
func (s *RecordService) Delete(ctx context.Context, accountID, recordID string) error {
	account, err := s.findOwner(ctx, accountID)
	if err != nil {
		return err
	}
	if _, err := s.records.FindByID(ctx, recordID); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return ErrRecordMissing
		}
		return err
	}

	account.RemoveRecord(recordID)
	if err := s.records.DeleteForAccount(ctx, recordID, account); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return ErrRecordMissing
		}
		return err
	}
	return nil
}
