package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, name, email, password_hash, roles, student_verified, faculty_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.StudentVerified, &u.FacultyVerified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUserParams are the inputs for CreateUser.
type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	roles := arg.Roles
	if len(roles) == 0 {
		roles = []string{"customer"}
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		arg.Name, arg.Email, arg.PasswordHash, roles)
	u, err := scanUser(row)
	if err != nil && IsUniqueViolation(err) {
		return User{}, ErrDuplicate
	}
	return u, err
}

// GetUserByEmail fetches an account by its normalised email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUserByID fetches an account by id.
func (s *Store) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateUserAccessParams are the inputs for UpdateUserAccess.
type UpdateUserAccessParams struct {
	ID              pgtype.UUID
	Roles           []string
	StudentVerified bool
	FacultyVerified bool
}

// UpdateUserAccess sets verification flags and roles (admin operation).
func (s *Store) UpdateUserAccess(ctx context.Context, arg UpdateUserAccessParams) (User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET roles = $2, student_verified = $3, faculty_verified = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		arg.ID, arg.Roles, arg.StudentVerified, arg.FacultyVerified)
	return scanUser(row)
}
