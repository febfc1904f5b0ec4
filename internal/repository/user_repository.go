package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role       *domain.Role
	ActiveOnly bool
}

// UserRepository defines persistence access for staff and technicians.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

const userColumns = `id, username, display_name, email, password_hash, roles, active, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, display_name, email, password_hash, roles, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.DisplayName,
		user.Email,
		user.PasswordHash,
		rolesToStrings(user.Roles),
		user.Active,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return translate(err)
}

// Update stores every mutable column; the username is fixed at creation.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET display_name=$1, email=$2, password_hash=$3, roles=$4, active=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		user.DisplayName,
		user.Email,
		user.PasswordHash,
		rolesToStrings(user.Roles),
		user.Active,
		user.ID,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return translate(err)
}

// List returns users ordered by username.
func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	var args []any
	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(roles)", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "active")
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY username`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user  domain.User
		roles []string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.Email,
		&user.PasswordHash,
		&roles,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	user.Roles = make([]domain.Role, len(roles))
	for i, role := range roles {
		user.Roles[i] = domain.Role(role)
	}
	return &user, nil
}

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}
