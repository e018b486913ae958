package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"finrecord/api/internal/ids"
	"finrecord/api/internal/models"
	"finrecord/api/internal/repository"
	"finrecord/api/internal/security"
)

var (
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

// AdminList is the configured set of administrator emails. Comparison is
// case-insensitive on the candidate side.
type AdminList []string

func (l AdminList) Contains(email string) bool {
	lowered := strings.ToLower(email)
	for _, admin := range l {
		if admin == lowered {
			return true
		}
	}
	return false
}

// UserView is an account whose license id list may be swapped for the full
// license documents on request.
type UserView struct {
	models.Account
	Licenses any `json:"licenses"`
}

// UserService covers account administration: listing with optional license
// enrichment, profile updates with email-change session rotation, and
// deletion.
type UserService struct {
	accounts AccountStore
	licenses LicenseStore
	tokens   *security.TokenAuthority
	admins   AdminList
	log      zerolog.Logger
}

func NewUserService(accounts AccountStore, licenses LicenseStore, tokens *security.TokenAuthority, admins AdminList, log zerolog.Logger) *UserService {
	return &UserService{
		accounts: accounts,
		licenses: licenses,
		tokens:   tokens,
		admins:   admins,
		log:      log.With().Str("component", "users").Logger(),
	}
}

func (s *UserService) view(ctx context.Context, account models.Account, withLicenses bool) UserView {
	view := UserView{Account: account, Licenses: account.Licenses}
	if withLicenses && len(account.Licenses) > 0 {
		if detailed, err := s.licenses.ListByIDs(ctx, account.Licenses); err == nil {
			view.Licenses = detailed
		} else {
			s.log.Error().Err(err).Str("account_id", account.ID).Msg("license enrichment failed")
		}
	}
	return view
}

// List pages through all accounts. With enrichment requested, the per-account
// license loads run concurrently.
func (s *UserService) List(ctx context.Context, page models.Page, withLicenses bool) ([]UserView, int, error) {
	total, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	accounts, err := s.accounts.List(ctx, page.Start, page.Limit())
	if err != nil {
		return nil, 0, err
	}

	views := make([]UserView, len(accounts))
	if !withLicenses {
		for i, account := range accounts {
			views[i] = UserView{Account: account, Licenses: account.Licenses}
		}
		return views, total, nil
	}

	var wg sync.WaitGroup
	for i, account := range accounts {
		wg.Add(1)
		go func(i int, account models.Account) {
			defer wg.Done()
			views[i] = s.view(ctx, account, true)
		}(i, account)
	}
	wg.Wait()
	return views, total, nil
}

func (s *UserService) Get(ctx context.Context, id string, withLicenses bool) (UserView, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return UserView{}, ErrUserNotFound
		}
		return UserView{}, err
	}
	return s.view(ctx, account, withLicenses), nil
}

// Create inserts an account as given, without opening a session. Used by the
// administrative import path.
func (s *UserService) Create(ctx context.Context, account models.Account) (models.Account, error) {
	if _, err := s.accounts.FindByEmail(ctx, account.Email); err == nil {
		return models.Account{}, ErrUsernameExists
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return models.Account{}, err
	}

	if account.ID == "" {
		account.ID = ids.NewAccount()
	}
	if account.Role == "" {
		account.Role = models.RoleUser
	}
	if account.Provider == "" {
		account.Provider = models.ProviderCredentials
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if repository.IsUniqueViolation(err) {
			return models.Account{}, ErrUsernameExists
		}
		return models.Account{}, err
	}
	return account, nil
}

// UserPatch updates a subset of profile fields; nil fields are left alone.
type UserPatch struct {
	Email    *string        `json:"email"`
	Username *string        `json:"username"`
	Name     *string        `json:"name"`
	Avatar   *string        `json:"avatar"`
	Role     *models.Role   `json:"role"`
	Options  map[string]any `json:"options"`
}

// Update patches the account. Changing the email rotates the session pair and
// returns the new access token for the cookie; role changes stick only for
// accounts on the admin list.
func (s *UserService) Update(ctx context.Context, id string, patch UserPatch) (models.Account, string, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, "", ErrUserNotFound
		}
		return models.Account{}, "", err
	}

	if patch.Username != nil && *patch.Username != "" &&
		!strings.EqualFold(account.Username, *patch.Username) {
		if _, err := s.accounts.FindByUsername(ctx, *patch.Username); err == nil {
			return models.Account{}, "", ErrUsernameExists
		} else if !errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, "", err
		}
		account.Username = *patch.Username
	}

	emailChanged := false
	if patch.Email != nil && *patch.Email != "" &&
		!strings.EqualFold(account.Email, *patch.Email) {
		if _, err := s.accounts.FindByEmail(ctx, *patch.Email); err == nil {
			return models.Account{}, "", ErrEmailExists
		} else if !errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, "", err
		}
		account.Email = *patch.Email
		emailChanged = true
	}

	if patch.Name != nil {
		account.Name = *patch.Name
	}
	if patch.Avatar != nil {
		account.Avatar = *patch.Avatar
	}
	if patch.Options != nil {
		for key, value := range patch.Options {
			account.SetOption(key, value)
		}
	}
	// Role changes only apply to allowlisted accounts.
	if patch.Role != nil && s.admins.Contains(account.Email) {
		account.Role = *patch.Role
	}

	var accessToken string
	if emailChanged {
		accessToken, err = s.tokens.Issue(account.Email, security.TokenKindAccess)
		if err != nil {
			return models.Account{}, "", err
		}
		refreshToken, issueErr := s.tokens.Issue(account.Email, security.TokenKindRefresh)
		if issueErr != nil {
			return models.Account{}, "", issueErr
		}
		if account.Credential == nil {
			account.Credential = &models.Credential{}
		}
		account.Credential.SessionToken = accessToken
		account.Credential.RefreshToken = refreshToken
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return models.Account{}, "", err
	}
	return account.WithoutSecrets(), accessToken, nil
}

// Delete removes the account and returns its last state for the response
// body.
func (s *UserService) Delete(ctx context.Context, id string) (models.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, &NotFoundError{Kind: "account", ID: id}
		}
		return models.Account{}, err
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return models.Account{}, err
	}
	s.log.Info().Str("account_id", id).Msg("account deleted")
	return account.WithoutCredential(), nil
}

// BulkUserUpdate is one entry of the bulk update body. A missing id creates a
// new account when creation is allowed.
type BulkUserUpdate struct {
	ID string `json:"id"`
	UserPatch
	NewEmail string `json:"newEmail,omitempty"`
}

// BulkResult reports one bulk entry's outcome: either the updated account or
// the failure keyed by the entry's id.
type BulkResult struct {
	Account models.Account
	ID      string
	Err     string
}

func (r BulkResult) OK() bool { return r.Err == "" }

// BulkUpdate applies many patches in order, collecting per-entry failures
// instead of aborting. The boolean return is false when every entry failed.
func (s *UserService) BulkUpdate(ctx context.Context, updates []BulkUserUpdate, allowCreate bool) ([]BulkResult, bool) {
	results := make([]BulkResult, len(updates))
	anyOK := false
	for i, update := range updates {
		results[i] = s.applyBulk(ctx, update, allowCreate)
		if results[i].OK() {
			anyOK = true
		}
	}
	return results, anyOK
}

func (s *UserService) applyBulk(ctx context.Context, update BulkUserUpdate, allowCreate bool) BulkResult {
	if update.ID == "" {
		if !allowCreate {
			return BulkResult{Err: "No record found"}
		}
		account := models.Account{}
		if update.Email != nil {
			account.Email = *update.Email
		}
		if update.Username != nil {
			account.Username = *update.Username
		}
		if update.Name != nil {
			account.Name = *update.Name
		}
		if update.Avatar != nil {
			account.Avatar = *update.Avatar
		}
		created, err := s.Create(ctx, account)
		if err != nil {
			return BulkResult{Err: err.Error()}
		}
		return BulkResult{Account: created, ID: created.ID}
	}

	updated, _, err := s.Update(ctx, update.ID, update.UserPatch)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return BulkResult{Err: "No record found", ID: update.ID}
		}
		return BulkResult{Err: err.Error(), ID: update.ID}
	}
	return BulkResult{Account: updated, ID: update.ID}
}
