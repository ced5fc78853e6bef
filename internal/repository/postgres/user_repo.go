package postgres

import (
	"database/sql"
	"fmt"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
)

type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userSelectFields = `id, email, COALESCE(first_name, '') as first_name, COALESCE(last_name, '') as last_name, role, password_hash, created_at`

// scanUser is a helper that scans a row into a User struct
func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user with a hashed password and returns its id
func (r *UserRepo) CreateUser(email, firstName, lastName string, role domain.Role, passwordHash string) (int64, error) {
	query := `
	INSERT INTO users (email, first_name, last_name, role, password_hash)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id;
	`
	var userID int64
	err := r.DB.QueryRow(query, email, firstName, lastName, role, passwordHash).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %v", err)
	}
	return userID, nil
}

// GetUserByEmail retrieves a user by email
func (r *UserRepo) GetUserByEmail(email string) (*domain.User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE email = $1;`
	user, err := scanUser(r.DB.QueryRow(query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by id
func (r *UserRepo) GetUserByID(id int64) (*domain.User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE id = $1;`
	user, err := scanUser(r.DB.QueryRow(query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return user, nil
}

// ListUsers returns all users, newest first
func (r *UserRepo) ListUsers(limit int) ([]domain.User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users ORDER BY created_at DESC LIMIT $1;`
	rows, err := r.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %v", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %v", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %v", err)
	}
	return users, nil
}

// UpdateUserRole changes a user's role. The change takes effect on the next
// token renewal, since claims are re-derived from the current row.
func (r *UserRepo) UpdateUserRole(id int64, role domain.Role) error {
	query := `UPDATE users SET role = $2 WHERE id = $1;`
	_, err := r.DB.Exec(query, id, role)
	if err != nil {
		return fmt.Errorf("failed to update user role: %v", err)
	}
	return nil
}

// UpdateProfile updates the display name parts
func (r *UserRepo) UpdateProfile(id int64, firstName, lastName string) error {
	query := `UPDATE users SET first_name = $2, last_name = $3 WHERE id = $1;`
	_, err := r.DB.Exec(query, id, firstName, lastName)
	if err != nil {
		return fmt.Errorf("failed to update profile: %v", err)
	}
	return nil
}
