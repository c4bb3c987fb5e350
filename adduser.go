package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gitlab.com/yelinaung/expense-claims/internal/auth"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

type addUserFlags struct {
	name           string
	email          string
	role           string
	password       string
	telegramChatID int64
}

func newAddUserCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var flags addUserFlags
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAddUser(cmd, flags, stdin, stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.name, "name", "", "Display name")
	f.StringVar(&flags.email, "email", "", "Login email")
	f.StringVar(&flags.role, "role", string(models.RoleEmployee), "Role: employee or admin")
	f.StringVar(&flags.password, "password", "", "Password (optional, will prompt if omitted)")
	f.Int64Var(&flags.telegramChatID, "telegram-chat-id", 0, "Telegram chat that receives review notifications")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runAddUser(cmd *cobra.Command, flags addUserFlags, stdin io.Reader, stdout io.Writer) error {
	role := models.Role(flags.role)
	if !role.Valid() {
		return fmt.Errorf("invalid role %q: must be employee or admin", flags.role)
	}

	password := flags.password
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	svc := newServices(b, cfg)
	user, err := svc.auth.CreateUser(ctx, auth.RegisterInput{
		Name:     flags.name,
		Email:    flags.email,
		Password: password,
	}, role)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if flags.telegramChatID != 0 {
		chatID := flags.telegramChatID
		if err := b.users.SetTelegramChatID(ctx, user.ID, &chatID); err != nil {
			return fmt.Errorf("failed to link telegram chat: %w", err)
		}
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s (role: %s)\n", user.Email, user.ID, user.Role)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Non-terminal input such as pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
