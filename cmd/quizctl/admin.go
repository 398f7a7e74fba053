package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/validator"
	"golang.org/x/term"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(newAdminCreateCmd())
	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var req model.RegisterAdminRequest
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account; the password is read from the terminal or stdin",
		Example: `  quizctl admin create --username operator --email op@example.com --name "Operator" --role super_admin
  echo "$PASSWORD" | quizctl admin create --username guru01 --email guru@example.com --name "Guru"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			req.Password = password
			req.Role = model.AdminRole(role)

			if fields := validator.Struct(&req); fields != nil {
				return fieldsError(fields)
			}

			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			auth := service.NewAuthService(e.cfg, nil, repository.NewAdminRepository(e.pool), e.log)
			admin, err := auth.Register(cmd.Context(), req)
			if err != nil {
				if errors.Is(err, service.ErrAdminExists) {
					return fmt.Errorf("username %q or email %q is already taken", req.Username, req.Email)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Admin '%s' (%s, %s) created with ID: %d\n",
				admin.Username, admin.Email, admin.Role, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "login name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.FullName, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(model.AdminRoleAdmin), "admin or super_admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func fieldsError(fields map[string]string) error {
	msgs := make([]string, 0, len(fields))
	for _, msg := range fields {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}
