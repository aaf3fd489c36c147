package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userColumns() []string {
	return []string{"id", "email", "name", "is_admin", "created_at"}
}

func userRow(id int64, email string, isAdmin bool) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns()).AddRow(id, email, "Test User", isAdmin, time.Now())
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	database, mock := newMockDB(t)
	svc := NewUserService(database, testMetrics(t))

	rows := sqlmock.NewRows(userColumns()).
		AddRow(int64(2), "new@example.com", "New", false, time.Now()).
		AddRow(int64(1), "old@example.com", "Old", true, time.Now().Add(-time.Hour))
	mock.ExpectQuery("FROM users ORDER BY created_at").WillReturnRows(rows)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "new@example.com", users[0].Email)
	assert.True(t, users[1].IsAdmin)
}

func TestUpdateUserRole(t *testing.T) {
	ctx := context.Background()
	database, mock := newMockDB(t)
	svc := NewUserService(database, testMetrics(t))

	mock.ExpectQuery("FROM users WHERE id").WillReturnRows(userRow(3, "user@example.com", false))
	mock.ExpectExec("UPDATE users SET is_admin").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM users WHERE id").WillReturnRows(userRow(3, "user@example.com", true))

	user, err := svc.UpdateUserRole(ctx, 3, true)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserRoleUnknownUser(t *testing.T) {
	ctx := context.Background()
	database, mock := newMockDB(t)
	svc := NewUserService(database, testMetrics(t))

	mock.ExpectQuery("FROM users WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := svc.UpdateUserRole(ctx, 99, true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	database, mock := newMockDB(t)
	svc := NewUserService(database, testMetrics(t))

	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, svc.DeleteUser(ctx, 3))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserNotFound(t *testing.T) {
	ctx := context.Background()
	database, mock := newMockDB(t)
	svc := NewUserService(database, testMetrics(t))

	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, svc.DeleteUser(ctx, 99), ErrUserNotFound)
}

func TestIsAdmin(t *testing.T) {
	ctx := context.Background()
	database, mock := newMockDB(t)
	svc := NewUserService(database, testMetrics(t))

	mock.ExpectQuery("FROM users WHERE id").WillReturnRows(userRow(3, "admin@example.com", true))

	admin, err := svc.IsAdmin(ctx, 3)
	require.NoError(t, err)
	assert.True(t, admin)
}
