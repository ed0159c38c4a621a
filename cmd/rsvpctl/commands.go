package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	authclient "rsvp/cmd/internal/auth/client"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and start a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			u, err := s.client.Register(cmd.Context(), args[0], name, pw)
			if err != nil {
				return err
			}
			if err := s.persist(u.Email); err != nil {
				return fmt.Errorf("registered but could not save session: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", u.Email, u.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password (default: $RSVP_PASSWORD or stdin)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and save the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			u, err := s.client.Login(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			if err := s.persist(u.Email); err != nil {
				return fmt.Errorf("logged in but could not save session: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", u.Email)
			return err
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password (default: $RSVP_PASSWORD or stdin)")
	return cmd
}

func newMeCmd(opts *rootOptions) *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show the current user",
		Long: `Fetches the current user. An expired access token is refreshed once and
the request replayed; with --parallel N, N concurrent requests share that
single refresh.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if parallel < 1 {
				return errors.New("--parallel must be at least 1")
			}
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			st, err := s.restore()
			if err != nil {
				return err
			}

			users := make([]authclient.User, parallel)
			g, ctx := errgroup.WithContext(cmd.Context())
			for i := range parallel {
				g.Go(func() error {
					u, err := s.client.Me(ctx)
					users[i] = u
					return err
				})
			}
			callErr := g.Wait()

			if err := s.persist(st.Email); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			if s.ended.Load() {
				return errSessionEnded
			}
			if callErr != nil {
				var apiErr *authclient.APIError
				if errors.As(callErr, &apiErr) && apiErr.Status == http.StatusUnauthorized {
					return errSessionEnded
				}
				return callErr
			}
			return printJSON(cmd.OutOrStdout(), users[0])
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 1, "Number of concurrent requests")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			if _, err := s.restore(); err != nil {
				if errors.Is(err, errNoSession) {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				}
				return err
			}
			if err := s.client.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := removeState(opts.statePath); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
