package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/dbx"
	"github.com/layerforge/layerforge/internal/server/models"
	adminsrepo "github.com/layerforge/layerforge/internal/server/repositories/admins"
	appstaterepo "github.com/layerforge/layerforge/internal/server/repositories/appstate"
	catalogrepo "github.com/layerforge/layerforge/internal/server/repositories/catalog"
	proofsrepo "github.com/layerforge/layerforge/internal/server/repositories/proofs"
	uploadsrepo "github.com/layerforge/layerforge/internal/server/repositories/uploads"
	usersrepo "github.com/layerforge/layerforge/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// sqlmockCtl registers transaction expectations on the mock. The fake repos
// do the actual work, so no statement expectations are needed.
type sqlmockCtl struct {
	mock sqlmock.Sqlmock
}

func (c sqlmockCtl) expectTx() {
	c.mock.ExpectBegin()
	c.mock.ExpectCommit()
}

func (c sqlmockCtl) expectRollback() {
	c.mock.ExpectBegin()
	c.mock.ExpectRollback()
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string) (bool, time.Duration) { return true, 0 }

type denyLimiter struct {
	retryAfter time.Duration
}

func (l denyLimiter) Allow(string) (bool, time.Duration) { return false, l.retryAfter }

// --- in-memory repositories ---

type fakeUsersRepo struct {
	users  []*models.AppUser
	getErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, user *models.AppUser) (*models.AppUser, error) {
	u := *user
	f.users = append(f.users, &u)
	return &u, nil
}

func (f *fakeUsersRepo) GetBySubject(ctx context.Context, subject string) (*models.AppUser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.IdentitySubject == subject {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.AppUser, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) SetSession(ctx context.Context, userID, token string, startedAt time.Time) error {
	for _, u := range f.users {
		if u.ID == userID {
			t, at := token, startedAt
			u.SessionToken = &t
			u.SessionStartedAt = &at
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeUsersRepo) SetAlertsReadAt(ctx context.Context, userID string, at time.Time) error {
	for _, u := range f.users {
		if u.ID == userID {
			a := at
			u.AlertsReadAt = &a
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeProofsRepo struct {
	proofs []*models.AdmissionProof
}

func (f *fakeProofsRepo) Create(ctx context.Context, proof *models.AdmissionProof) (*models.AdmissionProof, error) {
	p := *proof
	f.proofs = append(f.proofs, &p)
	return &p, nil
}

func (f *fakeProofsRepo) GetByID(ctx context.Context, id string) (*models.AdmissionProof, error) {
	for _, p := range f.proofs {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeProofsRepo) FindByHandleAndCode(ctx context.Context, normalizedHandle, code string) (*models.AdmissionProof, error) {
	for _, p := range f.proofs {
		if p.HandleNormalized != "" && p.HandleNormalized == normalizedHandle && p.AccessCode == code {
			return p, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeProofsRepo) ListUnnormalized(ctx context.Context) ([]*models.AdmissionProof, error) {
	var out []*models.AdmissionProof
	for _, p := range f.proofs {
		if p.HandleNormalized == "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProofsRepo) SetClaim(ctx context.Context, id, claimToken string, expiresAt time.Time) error {
	for _, p := range f.proofs {
		if p.ID == id {
			tok, exp := claimToken, expiresAt
			p.ClaimToken = &tok
			p.ClaimExpiresAt = &exp
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeProofsRepo) Consume(ctx context.Context, id, userID string, at time.Time) error {
	for _, p := range f.proofs {
		if p.ID == id {
			u, a := userID, at
			p.ConsumedBy = &u
			p.ConsumedAt = &a
			p.ClaimToken = nil
			p.ClaimExpiresAt = nil
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeAppStateRepo struct {
	settings []*models.AppSetting
}

func (f *fakeAppStateRepo) All(ctx context.Context) ([]*models.AppSetting, error) {
	return f.settings, nil
}

func (f *fakeAppStateRepo) DeleteAll(ctx context.Context) error {
	f.settings = nil
	return nil
}

func (f *fakeAppStateRepo) Insert(ctx context.Context, setting *models.AppSetting) error {
	s := *setting
	// newest first, matching the postgres ORDER BY
	f.settings = append([]*models.AppSetting{&s}, f.settings...)
	return nil
}

type fakeCatalogRepo struct {
	snapshots []*models.PricingSnapshot
	allErr    error
}

func (f *fakeCatalogRepo) All(ctx context.Context) ([]*models.PricingSnapshot, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.snapshots, nil
}

func (f *fakeCatalogRepo) DeleteAll(ctx context.Context) error {
	f.snapshots = nil
	return nil
}

func (f *fakeCatalogRepo) Insert(ctx context.Context, snapshot *models.PricingSnapshot) error {
	s := *snapshot
	f.snapshots = append([]*models.PricingSnapshot{&s}, f.snapshots...)
	return nil
}

type fakeUploadsRepo struct {
	uploads []*models.PendingUpload
}

func (f *fakeUploadsRepo) Create(ctx context.Context, upload *models.PendingUpload) (*models.PendingUpload, error) {
	u := *upload
	f.uploads = append(f.uploads, &u)
	return &u, nil
}

func (f *fakeUploadsRepo) GetByID(ctx context.Context, id string) (*models.PendingUpload, error) {
	for _, u := range f.uploads {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUploadsRepo) Consume(ctx context.Context, id string, at time.Time) error {
	for _, u := range f.uploads {
		if u.ID == id {
			if u.ConsumedAt != nil {
				return common.ErrorTicketConsumed
			}
			a := at
			u.ConsumedAt = &a
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeAdminsRepo struct {
	emails map[string]bool
}

func (f *fakeAdminsRepo) IsAdmin(ctx context.Context, email string) (bool, error) {
	return f.emails[email], nil
}

func (f *fakeAdminsRepo) Add(ctx context.Context, email string) error {
	if f.emails == nil {
		f.emails = map[string]bool{}
	}
	f.emails[email] = true
	return nil
}

type fakeRepoManager struct {
	users    *fakeUsersRepo
	proofs   *fakeProofsRepo
	appstate *fakeAppStateRepo
	catalog  *fakeCatalogRepo
	uploads  *fakeUploadsRepo
	admins   *fakeAdminsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    &fakeUsersRepo{},
		proofs:   &fakeProofsRepo{},
		appstate: &fakeAppStateRepo{},
		catalog:  &fakeCatalogRepo{},
		uploads:  &fakeUploadsRepo{},
		admins:   &fakeAdminsRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository           { return m.users }
func (m *fakeRepoManager) Proofs(dbx.DBTX) proofsrepo.Repository         { return m.proofs }
func (m *fakeRepoManager) AppState(dbx.DBTX) appstaterepo.Repository     { return m.appstate }
func (m *fakeRepoManager) Catalog(dbx.DBTX) catalogrepo.Repository       { return m.catalog }
func (m *fakeRepoManager) Uploads(dbx.DBTX) uploadsrepo.Repository       { return m.uploads }
func (m *fakeRepoManager) Admins(dbx.DBTX) adminsrepo.Repository         { return m.admins }
