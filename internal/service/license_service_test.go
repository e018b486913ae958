package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"finrecord/api/internal/models"
	"finrecord/api/internal/queue"
	"finrecord/api/internal/repository"
)

type fakeLicenseStore struct {
	licenses map[string]models.License

	statusUpdates []string
	granted       []models.Account
	updatedWith   []models.Account
	deletedWith   []models.Account
}

func newFakeLicenseStore(seed ...models.License) *fakeLicenseStore {
	s := &fakeLicenseStore{licenses: make(map[string]models.License)}
	for _, lic := range seed {
		s.licenses[lic.ID] = lic
	}
	return s
}

func (s *fakeLicenseStore) FindByID(_ context.Context, id string) (models.License, error) {
	if lic, ok := s.licenses[id]; ok {
		return lic, nil
	}
	return models.License{}, repository.ErrLicenseNotFound
}

func (s *fakeLicenseStore) ListByIDs(_ context.Context, ids []string) ([]models.License, error) {
	var out []models.License
	for _, id := range ids {
		if lic, ok := s.licenses[id]; ok {
			out = append(out, lic)
		}
	}
	return out, nil
}

func (s *fakeLicenseStore) matching(filter models.LicenseFilter) []models.License {
	var out []models.License
	for _, lic := range s.licenses {
		if filter.AccountID != "" && lic.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && lic.Status != filter.Status {
			continue
		}
		if filter.ToolName != "" && lic.ToolName != filter.ToolName {
			continue
		}
		out = append(out, lic)
	}
	return out
}

func (s *fakeLicenseStore) Count(_ context.Context, filter models.LicenseFilter) (int, error) {
	return len(s.matching(filter)), nil
}

func (s *fakeLicenseStore) Find(_ context.Context, filter models.LicenseFilter, _ models.Page) ([]models.License, error) {
	return s.matching(filter), nil
}

func (s *fakeLicenseStore) FindOverdueCandidates(_ context.Context, limit int) ([]models.License, error) {
	var out []models.License
	for _, lic := range s.licenses {
		if lic.Status == models.LicenseStatusExpired || lic.ExpiresAt == nil || *lic.ExpiresAt == "" {
			continue
		}
		out = append(out, lic)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeLicenseStore) Update(_ context.Context, lic models.License) error {
	if _, ok := s.licenses[lic.ID]; !ok {
		return repository.ErrLicenseNotFound
	}
	s.licenses[lic.ID] = lic
	return nil
}

func (s *fakeLicenseStore) UpdateStatus(_ context.Context, id, status string) error {
	lic, ok := s.licenses[id]
	if !ok {
		return repository.ErrLicenseNotFound
	}
	lic.Status = status
	s.licenses[id] = lic
	s.statusUpdates = append(s.statusUpdates, id+":"+status)
	return nil
}

func (s *fakeLicenseStore) GrantToAccount(_ context.Context, lic models.License, account models.Account) error {
	s.licenses[lic.ID] = lic
	s.granted = append(s.granted, account)
	return nil
}

func (s *fakeLicenseStore) UpdateForAccount(_ context.Context, lic models.License, account models.Account) error {
	if _, ok := s.licenses[lic.ID]; !ok {
		return repository.ErrLicenseNotFound
	}
	s.licenses[lic.ID] = lic
	s.updatedWith = append(s.updatedWith, account)
	return nil
}

func (s *fakeLicenseStore) DeleteForAccount(_ context.Context, id string, account models.Account) error {
	if _, ok := s.licenses[id]; !ok {
		return repository.ErrLicenseNotFound
	}
	delete(s.licenses, id)
	s.deletedWith = append(s.deletedWith, account)
	return nil
}

// fakeEnqueuer records every task handed to the stream.
type fakeEnqueuer struct {
	tasks []queue.Task
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, task queue.Task) error {
	e.tasks = append(e.tasks, task)
	return nil
}

func licenseFixture(id, accountID, status string, expiresAt *string) models.License {
	return models.License{
		ID:        id,
		AccountID: accountID,
		ProductID: "prod_1",
		Status:    status,
		ToolName:  "exporter",
		ExpiresAt: expiresAt,
	}
}

func newTestLicenseService(accounts *fakeAccountStore, licenses *fakeLicenseStore, tasks *fakeEnqueuer, now time.Time) *LicenseService {
	svc := NewLicenseService(accounts, licenses, tasks, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestListForAccountExpiresOverdueLicense(t *testing.T) {
	past := "2024-01-01T00:00:00Z"
	owner := models.Account{ID: "user_1", Email: "jane@example.com", Licenses: []string{"lic_1"}}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore(licenseFixture("lic_1", "user_1", "active", &past))
	tasks := &fakeEnqueuer{}
	svc := newTestLicenseService(accounts, licenses, tasks, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	got, total, err := svc.ListForAccount(context.Background(), "user_1", models.LicenseFilter{}, models.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, got, 1)
	require.Equal(t, models.LicenseStatusExpired, got[0].Status)

	require.Equal(t, []string{"lic_1:expired"}, licenses.statusUpdates)
	require.Len(t, tasks.tasks, 1)
	task := tasks.tasks[0]
	require.Equal(t, queue.TaskMirrorStatus, task.Type)
	require.Equal(t, "user_1", task.AccountID)
	require.Equal(t, "lic_1", task.LicenseID)
	require.Equal(t, "exporter", task.ToolName)
	require.Equal(t, models.LicenseStatusExpired, task.Status)
}

func TestReconcileSkipsMirrorWhenAlreadyMirrored(t *testing.T) {
	past := "2024-01-01T00:00:00Z"
	owner := models.Account{
		ID:       "user_1",
		Licenses: []string{"lic_1"},
		Options:  map[string]any{"exporter-lic_1": models.LicenseStatusExpired},
	}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore(licenseFixture("lic_1", "user_1", "active", &past))
	tasks := &fakeEnqueuer{}
	svc := newTestLicenseService(accounts, licenses, tasks, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	_, _, err := svc.ListForAccount(context.Background(), "user_1", models.LicenseFilter{}, models.Page{})
	require.NoError(t, err)
	require.Equal(t, []string{"lic_1:expired"}, licenses.statusUpdates, "status still persists")
	require.Empty(t, tasks.tasks, "no mirror task when the option already says expired")
}

func TestReconcileLeavesCurrentLicensesAlone(t *testing.T) {
	future := "2030-01-01T00:00:00Z"
	owner := models.Account{ID: "user_1", Licenses: []string{"lic_1", "lic_2"}}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore(
		licenseFixture("lic_1", "user_1", "active", &future),
		licenseFixture("lic_2", "user_1", models.LicenseStatusExpired, nil),
	)
	tasks := &fakeEnqueuer{}
	svc := newTestLicenseService(accounts, licenses, tasks, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	got, _, err := svc.ListForAccount(context.Background(), "user_1", models.LicenseFilter{}, models.Page{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Empty(t, licenses.statusUpdates, "already-expired and future licenses must not be rewritten")
	require.Empty(t, tasks.tasks)
}

func TestGetForAccountChecksOwnership(t *testing.T) {
	owner := models.Account{ID: "user_1", Licenses: []string{"lic_1"}}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore(
		licenseFixture("lic_1", "user_1", "active", nil),
		licenseFixture("lic_2", "user_2", "active", nil),
	)
	svc := newTestLicenseService(accounts, licenses, &fakeEnqueuer{}, time.Now())
	ctx := context.Background()

	lic, err := svc.GetForAccount(ctx, "user_1", "lic_1")
	require.NoError(t, err)
	require.Equal(t, "lic_1", lic.ID)

	_, err = svc.GetForAccount(ctx, "user_1", "lic_2")
	require.ErrorIs(t, err, ErrRecordMissing)

	_, err = svc.GetForAccount(ctx, "user_ghost", "lic_1")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestGrantLinksLicenseToAccount(t *testing.T) {
	owner := models.Account{ID: "user_1", Email: "jane@example.com"}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore()
	svc := newTestLicenseService(accounts, licenses, &fakeEnqueuer{}, time.Now())

	lic, err := svc.Grant(context.Background(), "user_1", GrantInput{
		License: models.License{ProductID: "prod_1", Status: "active", ToolName: "exporter"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(lic.ID, "lic_"))
	require.Equal(t, "user_1", lic.AccountID)

	require.Len(t, licenses.granted, 1)
	granted := licenses.granted[0]
	require.Equal(t, []string{lic.ID}, granted.Licenses)
	require.Equal(t, "active", granted.OptionString(lic.MirrorKey()))
}

func TestGrantResolvesAccountByEmail(t *testing.T) {
	owner := models.Account{ID: "user_1", Email: "jane@example.com"}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore()
	svc := newTestLicenseService(accounts, licenses, &fakeEnqueuer{}, time.Now())

	lic, err := svc.Grant(context.Background(), "", GrantInput{
		License: models.License{Status: "active", ToolName: "exporter"},
		Email:   "jane@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "user_1", lic.AccountID)

	_, err = svc.Grant(context.Background(), "", GrantInput{Email: "ghost@example.com"})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateLicenseStatusRewritesMirror(t *testing.T) {
	owner := models.Account{ID: "user_1", Licenses: []string{"lic_1"}}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore(licenseFixture("lic_1", "user_1", "active", nil))
	svc := newTestLicenseService(accounts, licenses, &fakeEnqueuer{}, time.Now())

	status := "suspended"
	lic, err := svc.Update(context.Background(), "user_1", "lic_1", LicensePatch{Status: &status})
	require.NoError(t, err)
	require.Equal(t, "suspended", lic.Status)

	require.Len(t, licenses.updatedWith, 1)
	require.Equal(t, "suspended", licenses.updatedWith[0].OptionString("exporter-lic_1"))
}

func TestUpdateLicensePlainPatch(t *testing.T) {
	owner := models.Account{ID: "user_1", Licenses: []string{"lic_1"}}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore(licenseFixture("lic_1", "user_1", "active", nil))
	svc := newTestLicenseService(accounts, licenses, &fakeEnqueuer{}, time.Now())

	note := "renewed over the phone"
	plan := "pro"
	lic, err := svc.Update(context.Background(), "user_1", "lic_1", LicensePatch{Note: &note, CurrentPlan: &plan})
	require.NoError(t, err)
	require.Equal(t, "renewed over the phone", lic.Note)
	require.Equal(t, "pro", lic.CurrentPlan)
	require.Equal(t, "active", lic.Status, "untouched fields survive the patch")
	require.Empty(t, licenses.updatedWith, "no account write without a status change")

	_, err = svc.Update(context.Background(), "user_1", "lic_missing", LicensePatch{Note: &note})
	require.ErrorIs(t, err, ErrRecordMissing)
}

func TestDeleteLicenseCleansOwner(t *testing.T) {
	owner := models.Account{
		ID:       "user_1",
		Licenses: []string{"lic_1", "lic_2"},
		Options:  map[string]any{"exporter-lic_1": "active", models.OptionMachineID: "AB-12"},
	}
	accounts := newFakeAccountStore(owner)
	licenses := newFakeLicenseStore(
		licenseFixture("lic_1", "user_1", "active", nil),
		licenseFixture("lic_2", "user_1", "active", nil),
	)
	svc := newTestLicenseService(accounts, licenses, &fakeEnqueuer{}, time.Now())

	require.NoError(t, svc.Delete(context.Background(), "user_1", "lic_1"))

	require.Len(t, licenses.deletedWith, 1)
	cleaned := licenses.deletedWith[0]
	require.Equal(t, []string{"lic_2"}, cleaned.Licenses)
	require.Empty(t, cleaned.OptionString("exporter-lic_1"))
	require.Equal(t, "AB-12", cleaned.OptionString(models.OptionMachineID), "unrelated options are kept")

	err := svc.Delete(context.Background(), "user_1", "lic_1")
	require.ErrorIs(t, err, ErrRecordMissing)
}
