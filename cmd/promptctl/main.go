// Command promptctl generates video prompts from the terminal. Guests and
// free users get a small local allowance; signed-in paid users skip it.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/freetier"
	"github.com/spf13/cobra"
)

const freeTierFile = "freetier.json"

type options struct {
	apiURL   string
	stateDir string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "promptctl",
		Short:        "Generate AI video prompts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("REELPROMPT_API", "http://localhost:5801"), "API base URL")
	root.PersistentFlags().StringVar(&opts.stateDir, "state-dir", defaultStateDir(), "directory for the session and free tier state")

	root.AddCommand(
		newGenerateCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

func newGenerateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <idea>",
		Short: "Turn an idea into a structured video prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 90*time.Second)
			defer cancel()

			sess, err := loadSession(opts.stateDir)
			if err != nil {
				return err
			}
			token := ""
			if sess != nil {
				token = sess.Token
			}
			c := newClient(opts.apiURL, token)

			paid := false
			if token != "" {
				u, err := c.me(ctx)
				var aerr *apiError
				switch {
				case errors.As(err, &aerr) && aerr.Status == http.StatusUnauthorized:
					cmd.PrintErrln("Session expired, continuing as a guest. Run `promptctl login` to sign in again.")
					c.token = ""
				case err != nil:
					return err
				default:
					paid = u.paid()
				}
			}

			// Only a delivered prompt uses up the allowance.
			var meter *freetier.Meter
			if !paid {
				meter = freetier.New(freetier.Config{Path: filepath.Join(opts.stateDir, freeTierFile)})
				st, err := meter.Status()
				if err != nil {
					return err
				}
				if st.Remaining == 0 {
					cmd.PrintErrf("You have used all %d free generations. Sign up for Pro to keep going, or try again after %s.\n",
						st.Allowance, st.ResetsAt.Local().Format(time.Kitchen))
					return freetier.ErrExhausted
				}
			}

			prompt, source, err := c.generate(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, prompt, "", "  "); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			if source == "fallback" {
				cmd.PrintErrln("The AI service was unavailable, so this is a template prompt.")
			}
			if meter != nil {
				st, err := meter.Consume()
				if err != nil && !errors.Is(err, freetier.ErrExhausted) {
					return err
				}
				cmd.PrintErrf("%d of %d free generations left.\n", st.Remaining, st.Allowance)
			}
			return nil
		},
	}
}

func newLoginCmd(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("REELPROMPT_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or REELPROMPT_PASSWORD) are required")
			}

			token, u, err := newClient(opts.apiURL, "").login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := saveSession(opts.stateDir, session{Token: token, Email: u.Email}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", u.Email, u.SubscriptionStatus)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := clearSession(opts.stateDir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in account and remaining free generations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := loadSession(opts.stateDir)
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			} else {
				u, err := newClient(opts.apiURL, sess.Token).me(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s, but the session could not be checked: %v\n", sess.Email, err)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", u.Email, u.SubscriptionStatus)
				}
			}

			st, err := freetier.New(freetier.Config{Path: filepath.Join(opts.stateDir, freeTierFile)}).Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Free generations: %d of %d left", st.Remaining, st.Allowance)
			if !st.ResetsAt.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), ", recharges at %s", st.ResetsAt.Local().Format(time.RFC1123))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "reelprompt")
	}
	return ".reelprompt"
}
