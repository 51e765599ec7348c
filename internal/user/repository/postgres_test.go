package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"client-connect/backend/internal/user/domain"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn), mock
}

var userColumns = []string{"id", "username", "email", "password_hash", "password_last_set", "created_at", "updated_at", "roles"}

func newUser(roles ...domain.RoleName) *domain.User {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.User{
		ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash",
		PasswordLastSet: &now, Roles: roles, CreatedAt: now, UpdatedAt: now,
	}
}

func TestGetByUsername_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT u\.id.*FROM users u.*WHERE u\.username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "alice", "alice@example.com", "hash", now, now, now, "ADMIN,USER"))

	u, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if u == nil {
		t.Fatal("GetByUsername returned nil user")
	}
	if u.ID != "u1" || u.Username != "alice" {
		t.Errorf("user = %+v, want id u1 username alice", u)
	}
	if u.PasswordLastSet == nil || !u.PasswordLastSet.Equal(now) {
		t.Errorf("PasswordLastSet = %v, want %v", u.PasswordLastSet, now)
	}
	if !u.HasRole(domain.RoleAdmin) || !u.HasRole(domain.RoleUser) {
		t.Errorf("roles = %v, want ADMIN and USER", u.Roles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByUsername_NullPasswordLastSet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)WHERE u\.username = \$1`).
		WithArgs("legacy").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u2", "legacy", "legacy@example.com", "hash", nil, now, now, "USER"))

	u, err := repo.GetByUsername(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if u.PasswordLastSet != nil {
		t.Errorf("PasswordLastSet = %v, want nil", u.PasswordLastSet)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)WHERE u\.username = \$1`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByUsername(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`(?s)WHERE u\.id = \$1`).WithArgs("u1").WillReturnError(boom)

	if _, err := repo.GetByID(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("GetByID err = %v, want wrapped %v", err, boom)
	}
}

func TestExistsWithRole(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("ADMIN").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsWithRole(context.Background(), domain.RoleAdmin)
	if err != nil {
		t.Fatalf("ExistsWithRole: %v", err)
	}
	if !ok {
		t.Error("ExistsWithRole = false, want true")
	}
}

func TestMissingRoles(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT name FROM roles`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ADMIN").AddRow("USER"))

	missing, err := repo.MissingRoles(context.Background(), []domain.RoleName{"USER", "AUDITOR"})
	if err != nil {
		t.Fatalf("MissingRoles: %v", err)
	}
	if len(missing) != 1 || missing[0] != "AUDITOR" {
		t.Errorf("missing = %v, want [AUDITOR]", missing)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	u := newUser(domain.RoleUser)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Username, u.Email, u.PasswordHash, sqlmock.AnyArg(), u.CreatedAt, u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_roles`).WithArgs("u1", "USER").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_AdminAlreadyExists(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("ADMIN").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), newUser(domain.RoleAdmin))
	if !errors.Is(err, ErrAdminExists) {
		t.Fatalf("Create err = %v, want ErrAdminExists", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		roles      []domain.RoleName
		want       error
	}{
		{"username", constraintUsername, []domain.RoleName{domain.RoleUser}, ErrDuplicateUsername},
		{"email", constraintEmail, []domain.RoleName{domain.RoleUser}, ErrDuplicateUsername},
		{"concurrent admin", constraintSingleAdmin, []domain.RoleName{domain.RoleAdmin}, ErrAdminExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			u := newUser(tt.roles...)
			pgErr := &pgconn.PgError{Code: "23505", ConstraintName: tt.constraint}

			mock.ExpectBegin()
			if u.HasRole(domain.RoleAdmin) {
				mock.ExpectQuery(`SELECT EXISTS`).WithArgs("ADMIN").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO user_roles`).WillReturnError(pgErr)
			} else {
				mock.ExpectExec(`INSERT INTO users`).WillReturnError(pgErr)
			}
			mock.ExpectRollback()

			if err := repo.Create(context.Background(), u); !errors.Is(err, tt.want) {
				t.Fatalf("Create err = %v, want %v", err, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestCreate_DBErrorPropagates(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), newUser(domain.RoleUser))
	if !errors.Is(err, boom) {
		t.Fatalf("Create err = %v, want wrapped %v", err, boom)
	}
	if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrAdminExists) {
		t.Fatal("driver fault must not be mapped to a domain error")
	}
}

func TestUpdatePassword(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE users SET password_hash`).WithArgs("u1", "newhash", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET password_hash`).WithArgs("missing", "newhash", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdatePassword(context.Background(), "u1", "newhash", at)
	if err != nil || !ok {
		t.Fatalf("UpdatePassword = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = repo.UpdatePassword(context.Background(), "missing", "newhash", at)
	if err != nil || ok {
		t.Fatalf("UpdatePassword missing = (%v, %v), want (false, nil)", ok, err)
	}
}
