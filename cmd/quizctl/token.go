package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
	"github.com/ump-quiz/quiz-backend/internal/service"
	"github.com/ump-quiz/quiz-backend/internal/validator"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage quiz access tokens",
	}
	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenListCmd())
	return cmd
}

func newTokenCreateCmd() *cobra.Command {
	var (
		name      string
		maxUsage  int
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Issue a token with a generated code",
		Example: `  quizctl token create --name "Kelas XII IPA" --max-usage 40 --expires-in 72h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.CreateTokenRequest{MaxUsage: maxUsage}
			if name != "" {
				req.TokenName = &name
			}
			if expiresIn > 0 {
				at := time.Now().Add(expiresIn)
				req.ExpiresAt = &at
			}
			if fields := validator.Struct(&req); fields != nil {
				return fieldsError(fields)
			}

			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			tokens := service.NewTokenService(repository.NewTokenRepository(e.pool), e.log)
			t, err := tokens.Create(cmd.Context(), req, nil)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t(max %d uses, expires %s)\n", t.TokenCode, t.MaxUsage, formatExpiry(t.ExpiresAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "label shown to admins")
	cmd.Flags().IntVar(&maxUsage, "max-usage", 1, "number of redemptions allowed")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "lifetime, e.g. 48h (0 = never)")
	return cmd
}

func newTokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every token, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			tokens := service.NewTokenService(repository.NewTokenRepository(e.pool), e.log)
			list, err := tokens.List(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tUSED\tMAX\tEXPIRES\tUSABLE")
			for i := range list {
				t := &list[i]
				label := "-"
				if t.TokenName != nil {
					label = *t.TokenName
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
					t.TokenCode, label, t.UsageCount, t.MaxUsage, formatExpiry(t.ExpiresAt), strconv.FormatBool(t.Usable(now)))
			}
			return w.Flush()
		},
	}
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
