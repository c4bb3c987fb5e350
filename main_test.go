package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/expense-claims/internal/auth"
	"gitlab.com/yelinaung/expense-claims/internal/config"
	"gitlab.com/yelinaung/expense-claims/internal/expense"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	err := run(context.Background(), args, strings.NewReader(stdin), stdout, stderr)
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	require.Contains(t, out, "expense-claims dev")
}

func TestAddUser_WithPasswordFlag(t *testing.T) {
	t.Setenv("DATABASE_URL", config.MemoryDatabaseURL)

	out, err := runCLI(t, "",
		"adduser", "--name", "Alice", "--email", "alice@example.com", "--role", "admin",
		"--password", "password123", "--telegram-chat-id", "42")
	require.NoError(t, err)
	require.Contains(t, out, "User alice@example.com created successfully")
	require.Contains(t, out, "role: admin")
}

func TestAddUser_PromptsForPassword(t *testing.T) {
	t.Setenv("DATABASE_URL", config.MemoryDatabaseURL)

	out, err := runCLI(t, "password123\n", "adduser", "--name", "Bob", "--email", "bob@example.com")
	require.NoError(t, err)
	require.Contains(t, out, "Password: ")
	require.Contains(t, out, "role: employee")
}

func TestAddUser_Errors(t *testing.T) {
	t.Setenv("DATABASE_URL", config.MemoryDatabaseURL)

	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{
			name:    "missing required flags",
			args:    []string{"adduser", "--password", "password123"},
			wantErr: "required flag",
		},
		{
			name:    "invalid role",
			args:    []string{"adduser", "--name", "A", "--email", "a@example.com", "--role", "root", "--password", "password123"},
			wantErr: "invalid role",
		},
		{
			name:    "weak password",
			args:    []string{"adduser", "--name", "A", "--email", "a@example.com", "--password", "short"},
			wantErr: "password must be at least",
		},
		{
			name:    "no password on stdin",
			args:    []string{"adduser", "--name", "A", "--email", "a@example.com"},
			wantErr: "failed to read password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.stdin, tt.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", config.MemoryDatabaseURL)

	_, err := runCLI(t, "", "migrate")
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires a PostgreSQL")
}

func TestConfigErrorsSurface(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := runCLI(t, "", "serve")
	require.Error(t, err)
	require.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestServices_MemoryBackend(t *testing.T) {
	t.Setenv("DATABASE_URL", config.MemoryDatabaseURL)
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	require.NoError(t, err)
	defer b.close()
	require.Nil(t, b.db)

	svc := newServices(b, cfg)
	user, err := svc.auth.Register(ctx, auth.RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "password123"})
	require.NoError(t, err)

	current := models.CurrentUser{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
	page, err := svc.expenses.ListExpenses(ctx, current, expense.ListInput{})
	require.NoError(t, err)
	require.Zero(t, page.Total)

	logs, err := svc.recorder.List(ctx, models.AuditFilter{UserID: user.ID}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Total)
}
