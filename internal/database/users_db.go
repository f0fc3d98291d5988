package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taskboard/app/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for stored password hashes.
const PasswordCost = bcrypt.DefaultCost

const userColumns = "id, username, email, password_hash, created_at"

// CreateUser hashes the password and inserts a new user into the database.
func CreateUser(ctx context.Context, db *sql.DB, username, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return nil, err
	}

	var id int64
	err = db.QueryRowContext(ctx,
		"INSERT INTO users(username, email, password_hash) VALUES($1, $2, $3) RETURNING id",
		username, email, string(hashedPassword),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && id == 0) {
		return nil, fmt.Errorf("create user %s: %w", email, ErrCreation)
	}
	if err != nil {
		return nil, err
	}

	// Re-read so DB defaults like created_at are populated.
	return GetUserByID(ctx, db, id)
}

// GetUserByEmail retrieves a user by their email address. The match is exact.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	row := db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

// GetUserByID retrieves a user by their ID.
func GetUserByID(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	row := db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

// VerifyPassword reports whether password matches the user's stored hash.
func VerifyPassword(user *models.User, password string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, err // sql.ErrNoRows when absent
	}
	return user, nil
}
