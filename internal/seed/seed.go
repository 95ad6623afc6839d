// Package seed populates a freshly migrated database with initial data.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/shinji-kodama/quizctl/internal/database"
)

// ErrNoUsersTable means the schema has not been migrated yet.
var ErrNoUsersTable = errors.New("users table does not exist; run upgrade first")

// Superuser is the account created on first run.
type Superuser struct {
	Email    string
	Password string
}

// HashPassword returns the bcrypt hash stored in users.hashed_password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// EnsureSuperuser creates the superuser unless a user with the same email
// exists. It reports whether a row was inserted.
func EnsureSuperuser(ctx context.Context, db *database.DB, su Superuser) (bool, error) {
	ok, err := db.TableExists(ctx, "users")
	if err != nil {
		return false, fmt.Errorf("inspect database: %w", err)
	}
	if !ok {
		return false, ErrNoUsersTable
	}

	var id string
	err = db.QueryRowContext(ctx, db.Rebind(`SELECT id FROM users WHERE email = ?`), su.Email).Scan(&id)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("look up superuser: %w", err)
	}

	hash, err := HashPassword(su.Password)
	if err != nil {
		return false, err
	}
	_, err = db.ExecContext(ctx,
		db.Rebind(`INSERT INTO users (id, email, hashed_password) VALUES (?, ?, ?)`),
		uuid.NewString(), su.Email, hash)
	if err != nil {
		return false, fmt.Errorf("insert superuser: %w", err)
	}
	return true, nil
}

// Run creates the initial data and logs its progress.
func Run(ctx context.Context, db *database.DB, su Superuser, logger logrus.FieldLogger) error {
	logger.Info("Start initial data")

	created, err := EnsureSuperuser(ctx, db, su)
	if err != nil {
		return err
	}
	if created {
		logger.WithField("email", su.Email).Info("Superuser was created")
	} else {
		logger.WithField("email", su.Email).Info("Superuser already exists in database")
	}

	logger.Info("Initial data created")
	return nil
}
