package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopforge/storefront-api/internal/db"
	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/models"
)

// UserService handles user accounts. Session issuance lives in the auth
// front; this service only stores identity and the admin role flag.
type UserService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewUserService creates a new user service
func NewUserService(db *db.DB, metrics *metrics.AppMetrics) *UserService {
	return &UserService{db: db, metrics: metrics}
}

// CreateUser registers a new user
func (s *UserService) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	if _, err := s.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	start := time.Now()
	query := "INSERT INTO users (email, name) VALUES (?, ?)"
	result, err := s.db.ExecContext(ctx, query, email, name)
	s.metrics.RecordDBQuery(ctx, "INSERT", "users", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	return s.GetUser(ctx, id)
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()
	query := "SELECT id, email, name, is_admin, created_at FROM users WHERE id = ?"
	var user models.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name, &user.IsAdmin, &user.CreatedAt)

	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail returns a user by email
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	start := time.Now()
	query := "SELECT id, email, name, is_admin, created_at FROM users WHERE email = ?"
	var user models.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Email, &user.Name, &user.IsAdmin, &user.CreatedAt)

	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListUsers returns every account, newest first. Admin only, enforced at
// the handler.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	start := time.Now()
	query := "SELECT id, email, name, is_admin, created_at FROM users ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.IsAdmin, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UpdateUserRole grants or revokes the administrative role
func (s *UserService) UpdateUserRole(ctx context.Context, userID int64, isAdmin bool) (*models.User, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	start := time.Now()
	query := "UPDATE users SET is_admin = ? WHERE id = ?"
	_, err := s.db.ExecContext(ctx, query, isAdmin, userID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "users", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}

	log.Printf("[USER] Role updated: user_id=%d, is_admin=%t", userID, isAdmin)
	return s.GetUser(ctx, userID)
}

// DeleteUser removes an account. Orders keep their user_id for the books.
func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	start := time.Now()
	query := "DELETE FROM users WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "users", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	log.Printf("[USER] User deleted: user_id=%d", userID)
	return nil
}

// IsAdmin reports whether the user holds the administrative role
func (s *UserService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}
