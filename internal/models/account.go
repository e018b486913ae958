package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

type Provider string

const (
	ProviderCredentials Provider = "credentials"
	ProviderOAuth       Provider = "oauth"
)

// ValidProvider reports whether p is one of the providers accepted at the
// authentication boundary.
func ValidProvider(p Provider) bool {
	return p == ProviderCredentials || p == ProviderOAuth
}

// OptionMachineID is the one-time device claim key inside Account.Options.
const OptionMachineID = "machineId"

// Credential is the embedded secret sub-record of an account. It is never
// addressable on its own and must be stripped from outgoing payloads.
type Credential struct {
	Password     string `json:"password,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	WithSocial   bool   `json:"withSocial,omitempty"`
	IP           string `json:"ip,omitempty"`
}

type Account struct {
	ID         string         `json:"id"`
	Email      string         `json:"email"`
	Username   string         `json:"username,omitempty"`
	Name       string         `json:"name,omitempty"`
	Avatar     string         `json:"avatar,omitempty"`
	Role       Role           `json:"role"`
	Provider   Provider       `json:"provider"`
	Credential *Credential    `json:"authentication,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
	Licenses   []string       `json:"licenses"`
	Records    []string       `json:"records"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// WithoutCredential returns a copy with the whole authentication sub-record
// removed. Used for registration responses.
func (a Account) WithoutCredential() Account {
	a.Credential = nil
	return a
}

// WithoutSecrets returns a copy whose credential keeps session bookkeeping but
// drops the password hash. Used for login and session-lookup responses.
func (a Account) WithoutSecrets() Account {
	if a.Credential != nil {
		cred := *a.Credential
		cred.Password = ""
		a.Credential = &cred
	}
	return a
}

// SetOption writes a key into the options map, allocating it on first use.
func (a *Account) SetOption(key string, value any) {
	if a.Options == nil {
		a.Options = make(map[string]any)
	}
	a.Options[key] = value
}

// OptionString reads a string-valued option, returning "" when absent or of
// another type.
func (a Account) OptionString(key string) string {
	if a.Options == nil {
		return ""
	}
	s, _ := a.Options[key].(string)
	return s
}

// HasLicense reports whether the license id is in the account's owned list.
func (a Account) HasLicense(id string) bool {
	for _, owned := range a.Licenses {
		if owned == id {
			return true
		}
	}
	return false
}

// RemoveLicense drops the license id from the owned list and deletes the
// mirrored options key that references it.
func (a *Account) RemoveLicense(id string) {
	kept := a.Licenses[:0]
	for _, owned := range a.Licenses {
		if owned != id {
			kept = append(kept, owned)
		}
	}
	a.Licenses = kept

	for key := range a.Options {
		if len(key) > len(id) && key[len(key)-len(id):] == id {
			delete(a.Options, key)
			break
		}
	}
}

// RemoveRecord drops the financial-record id from the owned list.
func (a *Account) RemoveRecord(id string) {
	kept := a.Records[:0]
	for _, owned := range a.Records {
		if owned != id {
			kept = append(kept, owned)
		}
	}
	a.Records = kept
}
