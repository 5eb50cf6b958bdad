package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/layerforge/layerforge/internal/client/api"
	"github.com/layerforge/layerforge/internal/common"
)

// Login signs in with an identity token. If the backend gates signup, the
// user is asked for a crowdfunding handle and access code, the claim is
// exchanged for a short-lived claim token, and the sign-in is retried with
// the proof attached.
func (a *App) Login(ctx context.Context) {
	token, err := GetSecret("Paste identity token", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	a.api.SetIdentityToken(token)

	ctx, cancel := context.WithTimeout(ctx, a.config.LoginWaitTimeout)
	defer cancel()

	result, err := a.api.EstablishSession(ctx, "", "")
	var rejected *api.AdmissionRejectedError
	if errors.As(err, &rejected) && rejected.Reason == common.AdmissionProofRequired {
		result, err = a.loginWithProof(ctx)
	}
	if err != nil {
		a.reportLoginError(err)
		return
	}

	if err := a.coordinator.SetSession(ctx, result.SessionToken, result.UserID, result.Email); err != nil {
		fmt.Fprintf(a.out, "error saving session: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "Signed in as %s. Sessions on other devices are now invalid.\n", result.Email)
}

func (a *App) loginWithProof(ctx context.Context) (*api.EstablishResult, error) {
	fmt.Fprintln(a.out, "New accounts require a crowdfunding backer code.")

	handle, err := GetSimpleText(a.reader, "Enter backer handle", a.out)
	if err != nil {
		return nil, err
	}
	code, err := GetSecret("Enter access code", a.out)
	if err != nil {
		return nil, err
	}

	claim, err := a.api.ClaimProof(ctx, handle, code)
	if err != nil {
		return nil, err
	}
	if !claim.Valid {
		switch claim.Reason {
		case common.ClaimRateLimited:
			return nil, &common.RateLimitError{}
		case common.ClaimAlreadyUsed:
			return nil, fmt.Errorf("this backer code was already used for another account")
		default:
			return nil, fmt.Errorf("backer handle or access code not recognized")
		}
	}

	fmt.Fprintf(a.out, "Backer verified (%s tier).\n", claim.Tier)
	return a.api.EstablishSession(ctx, claim.ProofID, claim.ClaimToken)
}

func (a *App) reportLoginError(err error) {
	var rejected *api.AdmissionRejectedError
	_, rateLimited := common.IsRateLimited(err)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		fmt.Fprintln(a.out, "Identity token was not accepted. Sign in again to get a fresh one.")
	case rateLimited:
		fmt.Fprintln(a.out, "Too many attempts. Wait a minute and try again.")
	case errors.As(err, &rejected):
		switch rejected.Reason {
		case common.AdmissionClaimExpired:
			fmt.Fprintln(a.out, "The backer code verification expired. Run login again.")
		case common.AdmissionProofAlreadyUsed:
			fmt.Fprintln(a.out, "This backer code was already used for another account.")
		default:
			fmt.Fprintf(a.out, "Account creation was refused (%s).\n", rejected.Reason)
		}
	default:
		fmt.Fprintf(a.out, "Login failed: %v\n", err)
	}
}
