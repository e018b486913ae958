package models

import "time"

// LicenseStatusExpired is the terminal status value: once observed, a license
// never transitions out of it.
const LicenseStatusExpired = "expired"

type License struct {
	ID                  string         `json:"id"`
	AccountID           string         `json:"userId"`
	ProductID           string         `json:"productId"`
	Status              string         `json:"status"`
	ModifyDateActivated string         `json:"modifyDateActivated,omitempty"`
	ActivationDays      int            `json:"activationDays,omitempty"`
	ExpiresAt           *string        `json:"expiresAt,omitempty"`
	CurrentPlan         string         `json:"currentPlan,omitempty"`
	CurrentPrice        string         `json:"currentPrice,omitempty"`
	PlanHistory         []string       `json:"historyLicenseBough,omitempty"`
	ToolName            string         `json:"toolName"`
	Category            string         `json:"category"`
	PaymentMethod       string         `json:"paymentMethod"`
	Note                string         `json:"note,omitempty"`
	Options             map[string]any `json:"options,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// MirrorKey is the options-map key under which the owning account caches this
// license's status.
func (l License) MirrorKey() string {
	return l.ToolName + "-" + l.ID
}

var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ExpiryTime parses the lenient expiry string. The second return is false when
// the license carries no expiry or the value does not parse; such licenses
// never expire.
func (l License) ExpiryTime() (time.Time, bool) {
	if l.ExpiresAt == nil || *l.ExpiresAt == "" {
		return time.Time{}, false
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, *l.ExpiresAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LicenseFilter selects licenses for count/list queries. Empty fields are
// ignored.
type LicenseFilter struct {
	AccountID     string
	ProductID     string
	Status        string
	ToolName      string
	Category      string
	PaymentMethod string
}

// Page carries the list-endpoint pagination contract: _start is the offset and
// _end the page size, with an optional whitelisted sort.
type Page struct {
	Start int
	End   int
	Sort  string
	Order string
}

// Limit returns the page size, defaulting to 10.
func (p Page) Limit() int {
	if p.End <= 0 {
		return 10
	}
	return p.End
}

// SortOrder reports the sort column and direction, valid only when both are
// set and the order is asc or desc.
func (p Page) SortOrder() (string, string, bool) {
	if p.Sort == "" || (p.Order != "asc" && p.Order != "desc") {
		return "", "", false
	}
	return p.Sort, p.Order, true
}
