package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/server/identity"
	"github.com/layerforge/layerforge/internal/server/models"
)

func newSessionService(t *testing.T, rm *fakeRepoManager) (*SessionService, sqlmockCtl) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	logger := logging.NewDefault()
	admission := NewAdmissionService(db, rm, allowAllLimiter{}, logger)
	svc := NewSessionService(db, rm, admission, allowAllLimiter{}, logger)
	return svc, sqlmockCtl{mock}
}

func bobIdentity() *identity.Identity {
	return &identity.Identity{Subject: "auth0|bob", Email: "bob@example.com", Name: "Bob"}
}

func TestEstablishSessionRequiresIdentity(t *testing.T) {
	svc, _ := newSessionService(t, newFakeRepoManager())

	_, err := svc.EstablishSession(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestEstablishSessionRateLimited(t *testing.T) {
	rm := newFakeRepoManager()
	db, _ := newSQLMockDB(t)
	logger := logging.NewDefault()
	admission := NewAdmissionService(db, rm, allowAllLimiter{}, logger)
	svc := NewSessionService(db, rm, admission, denyLimiter{retryAfter: 42 * time.Second}, logger)

	_, err := svc.EstablishSession(context.Background(), bobIdentity(), "", "")

	var rl *common.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 42*time.Second, rl.RetryAfter)
}

func TestEstablishSessionProvisionsNewUserWhenGateOff(t *testing.T) {
	rm := newFakeRepoManager()
	svc, ctl := newSessionService(t, rm)
	ctl.expectTx()

	grant, err := svc.EstablishSession(context.Background(), bobIdentity(), "", "")
	require.NoError(t, err)

	assert.Equal(t, "bob@example.com", grant.Email)
	assert.Equal(t, "Bob", grant.DisplayName)
	assert.False(t, grant.IsAdmin)
	assert.NotEmpty(t, grant.SessionToken)
	require.Len(t, rm.users.users, 1)
	assert.Nil(t, rm.users.users[0].AdmissionProofID)
}

func TestEstablishSessionLastWriteWins(t *testing.T) {
	rm := newFakeRepoManager()
	svc, ctl := newSessionService(t, rm)
	ctl.expectTx()
	ctx := context.Background()
	id := bobIdentity()

	first, err := svc.EstablishSession(ctx, id, "", "")
	require.NoError(t, err)

	// second sign-in from another device replaces the token outright
	second, err := svc.EstablishSession(ctx, id, "", "")
	require.NoError(t, err)
	require.NotEqual(t, first.SessionToken, second.SessionToken)

	// only one user row exists and only the newest token validates
	require.Len(t, rm.users.users, 1)
	assert.Equal(t, common.SessionInvalidated, svc.ValidateSession(ctx, id, first.SessionToken))
	assert.Equal(t, common.SessionValid, svc.ValidateSession(ctx, id, second.SessionToken))
}

func TestEstablishSessionAdminFlag(t *testing.T) {
	rm := newFakeRepoManager()
	require.NoError(t, rm.admins.Add(context.Background(), "bob@example.com"))
	svc, ctl := newSessionService(t, rm)
	ctl.expectTx()

	grant, err := svc.EstablishSession(context.Background(), bobIdentity(), "", "")
	require.NoError(t, err)
	assert.True(t, grant.IsAdmin)
}

func TestEstablishSessionEmailTaken(t *testing.T) {
	rm := newFakeRepoManager()
	rm.users.users = append(rm.users.users, &models.AppUser{
		ID:              "user-0",
		IdentitySubject: "auth0|other",
		Email:           "bob@example.com",
	})
	svc, ctl := newSessionService(t, rm)
	ctl.expectRollback()

	_, err := svc.EstablishSession(context.Background(), bobIdentity(), "", "")
	assert.ErrorIs(t, err, common.ErrorEmailTaken)
}

func gateOn(rm *fakeRepoManager) {
	rm.appstate.settings = []*models.AppSetting{{ID: "s1", AdmissionRequired: true}}
}

func seedProof(rm *fakeRepoManager, id string, mutate func(*models.AdmissionProof)) {
	p := &models.AdmissionProof{
		ID:               id,
		Handle:           "Bob",
		HandleNormalized: "bob",
		AccessCode:       "X1",
		Tier:             "Gold",
	}
	if mutate != nil {
		mutate(p)
	}
	rm.proofs.proofs = append(rm.proofs.proofs, p)
}

func TestEstablishSessionGatedRejections(t *testing.T) {
	now := time.Now()
	stale := now.Add(-time.Minute)
	fresh := now.Add(5 * time.Minute)
	token := "claim-token"
	user := "someone"

	tests := []struct {
		name       string
		proofID    string
		claimToken string
		mutate     func(*models.AdmissionProof)
		want       common.AdmissionReason
	}{
		{
			name: "no proof presented",
			want: common.AdmissionProofRequired,
		},
		{
			name:       "unknown proof id",
			proofID:    "missing",
			claimToken: token,
			want:       common.AdmissionProofNotFound,
		},
		{
			name:       "proof already consumed",
			proofID:    "proof-1",
			claimToken: token,
			mutate:     func(p *models.AdmissionProof) { p.ConsumedBy = &user },
			want:       common.AdmissionProofAlreadyUsed,
		},
		{
			name:       "claim never made",
			proofID:    "proof-1",
			claimToken: token,
			want:       common.AdmissionClaimMismatch,
		},
		{
			name:       "claim expired",
			proofID:    "proof-1",
			claimToken: token,
			mutate: func(p *models.AdmissionProof) {
				p.ClaimToken = &token
				p.ClaimExpiresAt = &stale
			},
			want: common.AdmissionClaimExpired,
		},
		{
			name:       "claim token mismatch",
			proofID:    "proof-1",
			claimToken: "wrong-token",
			mutate: func(p *models.AdmissionProof) {
				p.ClaimToken = &token
				p.ClaimExpiresAt = &fresh
			},
			want: common.AdmissionClaimMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rm := newFakeRepoManager()
			gateOn(rm)
			seedProof(rm, "proof-1", tc.mutate)
			svc, ctl := newSessionService(t, rm)
			ctl.expectRollback()

			_, err := svc.EstablishSession(context.Background(), bobIdentity(), tc.proofID, tc.claimToken)

			var rejected *common.AdmissionError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tc.want, rejected.Reason)
			assert.ErrorIs(t, err, common.ErrorAdmissionRejected)
			// no user may exist after a rejected provisioning
			assert.Empty(t, rm.users.users)
		})
	}
}

func TestEstablishSessionGatedSuccessConsumesProof(t *testing.T) {
	rm := newFakeRepoManager()
	gateOn(rm)
	token := "claim-token"
	fresh := time.Now().Add(5 * time.Minute)
	seedProof(rm, "proof-1", func(p *models.AdmissionProof) {
		p.ClaimToken = &token
		p.ClaimExpiresAt = &fresh
	})
	svc, ctl := newSessionService(t, rm)
	ctl.expectTx()

	grant, err := svc.EstablishSession(context.Background(), bobIdentity(), "proof-1", token)
	require.NoError(t, err)

	require.Len(t, rm.users.users, 1)
	created := rm.users.users[0]
	require.NotNil(t, created.AdmissionProofID)
	assert.Equal(t, "proof-1", *created.AdmissionProofID)

	proof := rm.proofs.proofs[0]
	require.NotNil(t, proof.ConsumedBy)
	assert.Equal(t, created.ID, *proof.ConsumedBy)
	assert.Nil(t, proof.ClaimToken)

	// the consumed proof can never admit a second account
	ctl.expectRollback()
	_, err = svc.EstablishSession(context.Background(),
		&identity.Identity{Subject: "auth0|eve", Email: "eve@example.com"}, "proof-1", token)
	var rejected *common.AdmissionError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, common.AdmissionProofAlreadyUsed, rejected.Reason)
	_ = grant
}

func TestEstablishSessionExistingUserSkipsGate(t *testing.T) {
	rm := newFakeRepoManager()
	svc, ctl := newSessionService(t, rm)
	ctl.expectTx()
	ctx := context.Background()

	_, err := svc.EstablishSession(ctx, bobIdentity(), "", "")
	require.NoError(t, err)

	// turning the gate on afterwards must not lock the existing user out
	gateOn(rm)
	grant, err := svc.EstablishSession(ctx, bobIdentity(), "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, grant.SessionToken)
}

func TestValidateSessionMalformedTokenShortCircuits(t *testing.T) {
	rm := newFakeRepoManager()
	rm.users.getErr = errors.New("db must not be reached")
	svc, _ := newSessionService(t, rm)

	reason := svc.ValidateSession(context.Background(), bobIdentity(), "'; DROP TABLE app_users;--")
	assert.Equal(t, common.SessionInvalidTokenFormat, reason)
}

func TestValidateSessionNoIdentity(t *testing.T) {
	svc, _ := newSessionService(t, newFakeRepoManager())

	reason := svc.ValidateSession(context.Background(), nil, "123e4567-e89b-42d3-a456-426614174000")
	assert.Equal(t, common.SessionNotAuthenticated, reason)
}

func TestValidateSessionNoAppUser(t *testing.T) {
	svc, _ := newSessionService(t, newFakeRepoManager())

	reason := svc.ValidateSession(context.Background(), bobIdentity(), "123e4567-e89b-42d3-a456-426614174000")
	assert.Equal(t, common.SessionNoAppUser, reason)
}

func TestValidateSessionLookupFailureIsNotAuthenticated(t *testing.T) {
	rm := newFakeRepoManager()
	rm.users.getErr = errors.New("connection reset")
	svc, _ := newSessionService(t, rm)

	reason := svc.ValidateSession(context.Background(), bobIdentity(), "123e4567-e89b-42d3-a456-426614174000")
	assert.Equal(t, common.SessionNotAuthenticated, reason)
}

func TestMarkAlertsRead(t *testing.T) {
	rm := newFakeRepoManager()
	svc, ctl := newSessionService(t, rm)
	ctl.expectTx()
	ctx := context.Background()

	grant, err := svc.EstablishSession(ctx, bobIdentity(), "", "")
	require.NoError(t, err)

	require.NoError(t, svc.MarkAlertsRead(ctx, grant.UserID))
	require.NotNil(t, rm.users.users[0].AlertsReadAt)
}

func TestResolveUser(t *testing.T) {
	rm := newFakeRepoManager()
	svc, ctl := newSessionService(t, rm)
	ctl.expectTx()
	ctx := context.Background()

	grant, err := svc.EstablishSession(ctx, bobIdentity(), "", "")
	require.NoError(t, err)

	user, err := svc.ResolveUser(ctx, bobIdentity())
	require.NoError(t, err)
	assert.Equal(t, grant.UserID, user.ID)

	_, err = svc.ResolveUser(ctx, nil)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = svc.ResolveUser(ctx, &identity.Identity{Subject: "auth0|nobody", Email: "nobody@example.com"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
