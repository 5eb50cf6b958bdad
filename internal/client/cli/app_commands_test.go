package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layerforge/layerforge/internal/client/api"
	"github.com/layerforge/layerforge/internal/client/config"
	"github.com/layerforge/layerforge/internal/client/session"
	"github.com/layerforge/layerforge/internal/client/state"
	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/logging"
)

type stubBackend struct {
	identityToken string

	establishResult *api.EstablishResult
	establishErr    error
	establishCalls  [][2]string

	claimResult *api.ClaimResult
	claimErr    error

	ticket    *api.UploadTicket
	ticketErr error

	downloadURL string
	commitErr   error
}

func (b *stubBackend) SetIdentityToken(token string) { b.identityToken = token }

func (b *stubBackend) EstablishSession(ctx context.Context, proofID, claimToken string) (*api.EstablishResult, error) {
	b.establishCalls = append(b.establishCalls, [2]string{proofID, claimToken})
	if b.establishErr != nil && len(b.establishCalls) == 1 {
		return nil, b.establishErr
	}
	return b.establishResult, nil
}

func (b *stubBackend) ClaimProof(ctx context.Context, handle, code string) (*api.ClaimResult, error) {
	return b.claimResult, b.claimErr
}

func (b *stubBackend) CreateUpload(ctx context.Context) (*api.UploadTicket, error) {
	return b.ticket, b.ticketErr
}

func (b *stubBackend) CommitUpload(ctx context.Context, ticketID string) (string, error) {
	return b.downloadURL, b.commitErr
}

func (b *stubBackend) ValidateSession(ctx context.Context, token string) (common.SessionReason, error) {
	return common.SessionValid, nil
}

type memStore struct {
	data map[string]string
}

func (s *memStore) Get(ctx context.Context, key string) (string, error) { return s.data[key], nil }
func (s *memStore) Set(ctx context.Context, key, value string) error {
	s.data[key] = value
	return nil
}
func (s *memStore) Delete(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func newTestApp(t *testing.T, b *stubBackend, input string) (*App, *bytes.Buffer) {
	t.Helper()
	store := &memStore{data: map[string]string{}}
	logger := logging.NewDefault()
	out := &bytes.Buffer{}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	app := &App{
		config:      cfg,
		api:         b,
		store:       store,
		coordinator: session.NewCoordinator(store, b, nil, logger, time.Second),
		logger:      logger,
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         out,
	}
	require.NoError(t, app.coordinator.Load(context.Background()))
	return app, out
}

func stubSecrets(t *testing.T, secrets ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(fd int) ([]byte, error) {
		s := secrets[i]
		i++
		return []byte(s), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

const sessionToken = "323e4567-e89b-42d3-a456-426614174000"

func TestLoginSuccess(t *testing.T) {
	b := &stubBackend{
		establishResult: &api.EstablishResult{
			UserID:       "user-1",
			Email:        "bob@example.com",
			SessionToken: sessionToken,
		},
	}
	app, out := newTestApp(t, b, "")
	stubSecrets(t, "identity-jwt")

	app.Login(context.Background())

	assert.Equal(t, "identity-jwt", b.identityToken)
	assert.Equal(t, session.StateValid, app.coordinator.State())
	assert.Equal(t, sessionToken, app.coordinator.Token())
	assert.Contains(t, out.String(), "Signed in as bob@example.com")
}

func TestLoginRetriesWithProofWhenGated(t *testing.T) {
	b := &stubBackend{
		establishErr: &api.AdmissionRejectedError{Reason: common.AdmissionProofRequired},
		establishResult: &api.EstablishResult{
			UserID:       "user-1",
			Email:        "bob@example.com",
			SessionToken: sessionToken,
		},
		claimResult: &api.ClaimResult{
			Valid:      true,
			Reason:     common.ClaimOK,
			ProofID:    "proof-1",
			Tier:       "Gold",
			ClaimToken: "claim-token-1",
		},
	}
	// handle is read as plain text, token and code via the secret seam
	app, out := newTestApp(t, b, "bob\n")
	stubSecrets(t, "identity-jwt", "CODE-123")

	app.Login(context.Background())

	require.Len(t, b.establishCalls, 2)
	assert.Equal(t, [2]string{"", ""}, b.establishCalls[0])
	assert.Equal(t, [2]string{"proof-1", "claim-token-1"}, b.establishCalls[1])
	assert.Equal(t, session.StateValid, app.coordinator.State())
	assert.Contains(t, out.String(), "Backer verified (Gold tier)")
}

func TestLoginInvalidBackerCode(t *testing.T) {
	b := &stubBackend{
		establishErr: &api.AdmissionRejectedError{Reason: common.AdmissionProofRequired},
		claimResult:  &api.ClaimResult{Valid: false, Reason: common.ClaimInvalidCredentials},
	}
	app, out := newTestApp(t, b, "bob\n")
	stubSecrets(t, "identity-jwt", "WRONG")

	app.Login(context.Background())

	assert.Equal(t, session.StateUnauthenticated, app.coordinator.State())
	assert.Contains(t, out.String(), "not recognized")
}

func TestLoginUsedBackerCode(t *testing.T) {
	b := &stubBackend{
		establishErr: &api.AdmissionRejectedError{Reason: common.AdmissionProofRequired},
		claimResult:  &api.ClaimResult{Valid: false, Reason: common.ClaimAlreadyUsed},
	}
	app, out := newTestApp(t, b, "bob\n")
	stubSecrets(t, "identity-jwt", "CODE-123")

	app.Login(context.Background())
	assert.Contains(t, out.String(), "already used")
}

func TestLoginBadIdentityToken(t *testing.T) {
	b := &stubBackend{establishErr: api.ErrUnauthorized}
	app, out := newTestApp(t, b, "")
	stubSecrets(t, "expired-jwt")

	app.Login(context.Background())

	assert.Equal(t, session.StateUnauthenticated, app.coordinator.State())
	assert.Contains(t, out.String(), "not accepted")
}

func TestUploadRoundTrip(t *testing.T) {
	var gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	b := &stubBackend{
		ticket:      &api.UploadTicket{TicketID: "ticket-1", URL: ts.URL + "/designs/key"},
		downloadURL: "https://storage.example.com/designs/key?sig=abc",
	}
	app, out := newTestApp(t, b, "")
	ctx := context.Background()
	require.NoError(t, app.coordinator.SetSession(ctx, sessionToken, "user-1", "bob@example.com"))

	path := filepath.Join(t.TempDir(), "bracket.stl")
	require.NoError(t, os.WriteFile(path, []byte("solid bracket"), 0o600))

	app.Upload(ctx, path)

	assert.Equal(t, "solid bracket", gotBody)
	assert.Contains(t, out.String(), "https://storage.example.com/designs/key?sig=abc")
}

func TestUploadRequiresLogin(t *testing.T) {
	app, out := newTestApp(t, &stubBackend{}, "")

	app.Upload(context.Background(), "whatever.stl")
	assert.Contains(t, out.String(), "Log in first.")
}

func TestDismissAfterKick(t *testing.T) {
	app, out := newTestApp(t, &stubBackend{}, "")
	ctx := context.Background()
	require.NoError(t, app.store.Set(ctx, state.KeyKicked, "1"))
	require.NoError(t, app.coordinator.Load(ctx))

	app.Status(ctx)
	assert.Contains(t, out.String(), "another device")

	app.Dismiss(ctx)
	assert.Equal(t, session.StateUnauthenticated, app.coordinator.State())
	assert.Contains(t, out.String(), "Dismissed")
}
