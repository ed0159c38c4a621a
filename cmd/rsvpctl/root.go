package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	authclient "rsvp/cmd/internal/auth/client"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type rootOptions struct {
	server    string
	statePath string
	timeout   time.Duration
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "rsvpctl",
		Short:         "Command-line client for the rsvp auth API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("RSVP_SERVER", "http://localhost:8080"), "Base URL of the rsvp server")
	root.PersistentFlags().StringVar(&opts.statePath, "state", envOr("RSVPCTL_STATE", defaultStatePath()), "Session state file")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log refresh activity to stderr")

	root.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newMeCmd(opts),
		newLogoutCmd(opts),
	)
	return root
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// session is one invocation's view of the persisted login.
type cliSession struct {
	opts   *rootOptions
	client *authclient.Client
	ended  atomic.Bool
}

func (o *rootOptions) newSession(cmd *cobra.Command) (*cliSession, error) {
	s := &cliSession{opts: o}

	log := slog.New(slog.DiscardHandler)
	if o.verbose {
		log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	c, err := authclient.New(o.server,
		authclient.WithTimeout(o.timeout),
		authclient.WithLogger(log),
		authclient.WithSessionEnded(func(error) { s.ended.Store(true) }),
	)
	if err != nil {
		return nil, err
	}
	s.client = c
	return s, nil
}

// restore loads the saved session for the configured server.
func (s *cliSession) restore() (state, error) {
	st, err := loadState(s.opts.statePath)
	if err != nil {
		return state{}, err
	}
	if st.Server != "" && strings.TrimRight(st.Server, "/") != strings.TrimRight(s.opts.server, "/") {
		return state{}, fmt.Errorf("saved session belongs to %s; pass --server or log in again", st.Server)
	}
	s.client.RestoreSession(st.AccessToken, st.RefreshToken)
	return st, nil
}

// persist writes whatever the client currently holds. A session that ended
// during this invocation removes the state file instead.
func (s *cliSession) persist(email string) error {
	if s.ended.Load() {
		return removeState(s.opts.statePath)
	}
	refresh, _ := s.client.RefreshCookie()
	return saveState(s.opts.statePath, state{
		Server:       s.opts.server,
		AccessToken:  s.client.Coordinator().Token(),
		RefreshToken: refresh,
		Email:        email,
	})
}

var errSessionEnded = errors.New("session ended; run rsvpctl login")

// Test seams for the terminal prompt.
var (
	isTerminal           = term.IsTerminal
	readTerminalPassword = term.ReadPassword
)

// readPassword takes the flag, then RSVP_PASSWORD, then prompts. A terminal
// is read without echo; piped input is read one line at a time.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("RSVP_PASSWORD"); v != "" {
		return v, nil
	}
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "password: ")
	if f, ok := cmd.InOrStdin().(*os.File); ok && isTerminal(int(f.Fd())) {
		b, err := readTerminalPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if len(b) == 0 {
			return "", errors.New("password required")
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password required")
	}
	return pw, nil
}
