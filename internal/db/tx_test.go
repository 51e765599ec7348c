package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), conn, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO t(v) VALUES ('ok')")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = WithTx(context.Background(), conn, nil, func(ctx context.Context, tx DBTX) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx err = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	}()
	_ = WithTx(context.Background(), conn, nil, func(ctx context.Context, tx DBTX) error {
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectBegin().WillReturnError(errors.New("conn refused"))
	called := false
	err = WithTx(context.Background(), conn, nil, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("WithTx should fail when Begin fails")
	}
	if called {
		t.Error("fn must not run when Begin fails")
	}
}

func TestUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
	name, ok := UniqueViolation(fmt.Errorf("insert: %w", pgErr))
	if !ok || name != "users_username_key" {
		t.Errorf("UniqueViolation = (%q, %v), want (users_username_key, true)", name, ok)
	}
	if _, ok := UniqueViolation(&pgconn.PgError{Code: "23503"}); ok {
		t.Error("foreign key violation should not be reported as unique violation")
	}
	if _, ok := UniqueViolation(errors.New("plain")); ok {
		t.Error("plain error should not be reported as unique violation")
	}
}
