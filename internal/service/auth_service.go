package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finrecord/api/internal/ids"
	"finrecord/api/internal/models"
	"finrecord/api/internal/repository"
	"finrecord/api/internal/security"
)

// AuthService owns the credential and session lifecycle: registration, login
// with lazy token rotation, refresh, password reset and cookie-backed session
// lookup.
type AuthService struct {
	accounts           AccountStore
	tokens             *security.TokenAuthority
	log                zerolog.Logger
	bcryptCost         int
	environment        string
	singleAccountPerIP bool
}

func NewAuthService(accounts AccountStore, tokens *security.TokenAuthority, log zerolog.Logger, bcryptCost int, environment string, singleAccountPerIP bool) *AuthService {
	return &AuthService{
		accounts:           accounts,
		tokens:             tokens,
		log:                log.With().Str("component", "auth").Logger(),
		bcryptCost:         bcryptCost,
		environment:        environment,
		singleAccountPerIP: singleAccountPerIP,
	}
}

type RegisterInput struct {
	Email      string          `json:"email"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	Name       string          `json:"name"`
	Avatar     string          `json:"avatar"`
	Provider   models.Provider `json:"provider"`
	WithSocial bool            `json:"withSocial"`
	Options    map[string]any  `json:"options"`

	// IP is the caller's address, filled in by the handler.
	IP string `json:"-"`
}

// Register creates a new account and opens its first session. The returned
// token goes into the session cookie; the returned account carries no
// authentication sub-record.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (models.Account, string, error) {
	password := in.Password
	withSocial := false
	if password == "" && in.WithSocial && in.Provider == models.ProviderOAuth {
		password = security.GenerateDefaultPassword() + "__random"
		withSocial = true
	}

	if !models.ValidProvider(in.Provider) {
		return models.Account{}, "", ErrInvalidCredentials
	}
	if in.Email == "" || password == "" {
		return models.Account{}, "", ErrEmailRequired
	}
	if !validEmail(in.Email) {
		return models.Account{}, "", ErrIncorrectEmail
	}
	if reason := checkPassword(password); reason != "" {
		return models.Account{}, "", &WeakPasswordError{Reason: reason}
	}
	if len(in.Email) > 56 || len(in.Name) > 40 {
		return models.Account{}, "", ErrEmailOrNameTooLong
	}

	if existing, err := s.accounts.FindByEmail(ctx, in.Email); err == nil {
		return models.Account{}, "", &AlreadyRegisteredError{Email: existing.Email}
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return models.Account{}, "", err
	}

	if s.singleAccountPerIP && !s.isDev() && in.IP != "" {
		count, err := s.accounts.CountByRegistrationIP(ctx, in.IP)
		if err != nil {
			return models.Account{}, "", err
		}
		if count >= 1 {
			return models.Account{}, "", ErrTooManyAccounts
		}
	}

	username := in.Username
	if username == "" {
		username = defaultUsername(in.Email)
	}

	accessToken, err := s.tokens.Issue(in.Email, security.TokenKindAccess)
	if err != nil {
		return models.Account{}, "", err
	}
	refreshToken, err := s.tokens.Issue(in.Email, security.TokenKindRefresh)
	if err != nil {
		return models.Account{}, "", err
	}
	hashed, err := security.HashPassword(password, s.bcryptCost)
	if err != nil {
		return models.Account{}, "", err
	}

	account := models.Account{
		ID:       ids.NewAccount(),
		Email:    in.Email,
		Username: username,
		Name:     in.Name,
		Avatar:   in.Avatar,
		Role:     models.RoleUser,
		Provider: in.Provider,
		Options:  in.Options,
		Credential: &models.Credential{
			Password:     hashed,
			SessionToken: accessToken,
			RefreshToken: refreshToken,
			WithSocial:   withSocial,
			IP:           in.IP,
		},
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if repository.IsUniqueViolation(err) {
			return models.Account{}, "", &AlreadyRegisteredError{Email: in.Email}
		}
		return models.Account{}, "", err
	}

	s.log.Info().Str("account_id", account.ID).Msg("account registered")
	return account.WithoutCredential(), accessToken, nil
}

type LoginInput struct {
	Email      string          `json:"email"`
	Password   string          `json:"password"`
	Avatar     string          `json:"avatar"`
	Provider   models.Provider `json:"provider"`
	WithSocial bool            `json:"withSocial"`
	Options    map[string]any  `json:"options"`
}

// Login authenticates and refreshes the stored session pair only when the
// current one is stale. The returned token is empty when the account has no
// credential to verify, in which case no cookie is set.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (models.Account, string, error) {
	password := in.Password
	withOauth := in.WithSocial && in.Provider == models.ProviderOAuth
	if password == "" && withOauth {
		password = security.GenerateDefaultPassword() + "__random"
	}

	if !models.ValidProvider(in.Provider) {
		return models.Account{}, "", ErrInvalidCredentials
	}
	if in.Email == "" || password == "" {
		return models.Account{}, "", ErrEmailRequired
	}

	account, err := s.accounts.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, "", ErrUserNotFound
		}
		return models.Account{}, "", err
	}

	cred := account.Credential
	if cred == nil || cred.Password == "" {
		return account.WithoutSecrets(), "", nil
	}

	if !cred.WithSocial && !withOauth {
		if !security.VerifyPassword(password, cred.Password) {
			return models.Account{}, "", ErrIncorrectPassword
		}
	}

	accessToken := cred.SessionToken
	if accessToken != "" {
		if claims, decodeErr := security.DecodeUnverified(accessToken); decodeErr == nil && claims.Stale(time.Now()) {
			accessToken, err = s.tokens.Issue(in.Email, security.TokenKindAccess)
			if err != nil {
				return models.Account{}, "", err
			}
			refreshToken, issueErr := s.tokens.Issue(in.Email, security.TokenKindRefresh)
			if issueErr != nil {
				return models.Account{}, "", issueErr
			}
			cred.SessionToken = accessToken
			cred.RefreshToken = refreshToken
		}
	}

	if withOauth {
		account.Provider = in.Provider
		if in.Avatar != "" {
			account.Avatar = in.Avatar
		}
	}

	// A machine id can be claimed once and never overwritten.
	if machineID, ok := in.Options[models.OptionMachineID].(string); ok && machineID != "" {
		if account.OptionString(models.OptionMachineID) == "" {
			account.SetOption(models.OptionMachineID, strings.ToUpper(machineID))
		}
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return models.Account{}, "", err
	}

	return account.WithoutSecrets(), accessToken, nil
}

// Refresh exchanges a refresh token for a fresh access token. maxAge, when
// positive, overrides the default lifetime and is echoed to the cookie.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, maxAge time.Duration) (string, error) {
	if refreshToken == "" {
		return "", ErrRefreshTokenMissing
	}

	account, err := s.accounts.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	claims, err := s.tokens.Verify(refreshToken, security.TokenKindRefresh)
	if err != nil {
		return "", ErrRefreshTokenRejected
	}
	if claims.Email == "" {
		return "", ErrUserNotFound
	}

	accessToken, err := s.issueAccess(claims.Email, maxAge)
	if err != nil {
		return "", err
	}

	account.Credential.SessionToken = accessToken
	if err := s.accounts.Save(ctx, account); err != nil {
		return "", err
	}
	return accessToken, nil
}

func (s *AuthService) issueAccess(email string, ttl time.Duration) (string, error) {
	if ttl > 0 {
		return s.tokens.IssueWithTTL(email, security.TokenKindAccess, ttl)
	}
	return s.tokens.Issue(email, security.TokenKindAccess)
}

// ResetPassword replaces the credential and rotates both tokens. The new
// access token carries no expiry.
func (s *AuthService) ResetPassword(ctx context.Context, id string, password string, provider models.Provider) (string, error) {
	if password == "" && provider == models.ProviderOAuth {
		password = security.GenerateDefaultPassword() + "__random"
	}

	if !models.ValidProvider(provider) {
		return "", ErrInvalidCredentials
	}
	if password == "" {
		return "", ErrPasswordRequired
	}
	if reason := checkPassword(password); reason != "" {
		return "", &WeakPasswordError{Reason: reason}
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if account.Credential == nil {
		return "", ErrUserNotFound
	}

	accessToken, err := s.tokens.IssueWithTTL(account.Email, security.TokenKindAccess, 0)
	if err != nil {
		return "", err
	}
	refreshToken, err := s.tokens.Issue(account.Email, security.TokenKindRefresh)
	if err != nil {
		return "", err
	}
	hashed, err := security.HashPassword(password, s.bcryptCost)
	if err != nil {
		return "", err
	}

	account.Credential.Password = hashed
	account.Credential.SessionToken = accessToken
	account.Credential.RefreshToken = refreshToken
	if err := s.accounts.Save(ctx, account); err != nil {
		return "", err
	}

	s.log.Info().Str("account_id", account.ID).Msg("password reset")
	return accessToken, nil
}

// SessionFromToken resolves the account owning the given session cookie
// value.
func (s *AuthService) SessionFromToken(ctx context.Context, token string) (models.Account, error) {
	if token == "" {
		return models.Account{}, ErrNoSession
	}
	account, err := s.accounts.FindBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, ErrUserNotFound
		}
		return models.Account{}, err
	}
	return account.WithoutSecrets(), nil
}

func (s *AuthService) isDev() bool {
	return s.environment == "development"
}
