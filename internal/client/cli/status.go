package cli

import (
	"context"
	"fmt"

	"github.com/layerforge/layerforge/internal/client/session"
	"github.com/layerforge/layerforge/internal/client/state"
)

// Status prints the session state and, when known, the signed-in account.
func (a *App) Status(ctx context.Context) {
	st := a.coordinator.State()
	fmt.Fprintf(a.out, "Session: %s\n", st)

	if st == session.StateSuperseded {
		fmt.Fprintln(a.out, "Your account was signed in on another device. Type 'dismiss' and log in again to use it here.")
		return
	}

	email, err := a.store.Get(ctx, state.KeyEmail)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	if email != "" {
		fmt.Fprintf(a.out, "Account: %s\n", email)
	}
}

// Dismiss acknowledges a session takeover notice.
func (a *App) Dismiss(ctx context.Context) {
	if a.coordinator.State() != session.StateSuperseded {
		fmt.Fprintln(a.out, "Nothing to dismiss.")
		return
	}
	if err := a.coordinator.DismissKick(ctx); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, "Dismissed. Use 'login' to sign in again.")
}
