package users

import "context"

// Repo persists user accounts. CreateUser fails with
// autherr.ErrUsernameExists when the username is already taken and must
// leave the stored record untouched. Lookups return autherr.ErrNotFound
// for unknown users.
type Repo interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}
