package admins

import "context"

// Repository is the allow-list of admin emails.
type Repository interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, email string) error
}
