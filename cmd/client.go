package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/breviobot/breviobot-service/client"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	clientServerURL   string
	clientSessionFile string
	clientLanguage    string
	clientModel       string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Talk to a running BrevioBot server",
}

var clientSignupCmd = &cobra.Command{
	Use:   "signup <username> <email>",
	Short: "Create an account; a verification link is emailed",
	Args:  cobra.ExactArgs(2),
	RunE: withClientSession(func(ctx context.Context, s *client.Session, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		res, err := s.Signup(ctx, args[0], args[1], password)
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		return nil
	}),
}

var clientVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Redeem an email verification token",
	Args:  cobra.ExactArgs(1),
	RunE: withClientSession(func(ctx context.Context, s *client.Session, args []string) error {
		res, err := s.Verify(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		return nil
	}),
}

var clientResendCmd = &cobra.Command{
	Use:   "resend <username>",
	Short: "Send a new verification email",
	Args:  cobra.ExactArgs(1),
	RunE: withClientSession(func(ctx context.Context, s *client.Session, args []string) error {
		res, err := s.ResendVerification(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		return nil
	}),
}

var clientLoginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the session tokens",
	Args:  cobra.ExactArgs(1),
	RunE: withClientSession(func(ctx context.Context, s *client.Session, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		res, err := s.Login(ctx, args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s (%s)\n", res.User.Username, res.User.Role)
		return nil
	}),
}

var clientMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the logged-in identity",
	Args:  cobra.NoArgs,
	RunE: withClientSession(func(ctx context.Context, s *client.Session, _ []string) error {
		res, err := s.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("user_id: %d\nusername: %s\nrole: %s\n", res.User.UserID, res.User.Username, res.User.Role)
		return nil
	}),
}

var clientSummarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a file, or stdin when no file is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: withClientSession(func(ctx context.Context, s *client.Session, args []string) error {
		var (
			text []byte
			err  error
		)
		if len(args) == 1 {
			text, err = os.ReadFile(args[0])
		} else {
			text, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}

		summary, err := s.Summarize(ctx, string(text), clientLanguage, clientModel)
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	}),
}

var clientLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: withClientSession(func(ctx context.Context, s *client.Session, _ []string) error {
		if err := s.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	}),
}

func init() {
	clientCmd.PersistentFlags().StringVar(&clientServerURL, "server", envOr("BREVIOBOT_URL", "http://localhost:8080"), "server base URL")
	clientCmd.PersistentFlags().StringVar(&clientSessionFile, "session-file", defaultSessionFile(), "where session tokens are kept")
	clientSummarizeCmd.Flags().StringVar(&clientLanguage, "language", "", "summary language")
	clientSummarizeCmd.Flags().StringVar(&clientModel, "model", "", "model name")

	clientCmd.AddCommand(
		clientSignupCmd,
		clientVerifyCmd,
		clientResendCmd,
		clientLoginCmd,
		clientMeCmd,
		clientSummarizeCmd,
		clientLogoutCmd,
	)
	rootCmd.AddCommand(clientCmd)
}

func withClientSession(run func(ctx context.Context, s *client.Session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := client.OpenBoltStore(clientSessionFile)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		session, err := client.NewSession(ctx, clientServerURL, store)
		if err != nil {
			return err
		}

		err = run(ctx, session, args)
		if errors.Is(err, client.ErrReauthenticationRequired) {
			return errors.New("session expired, run `breviobot client login` again")
		}
		return err
	}
}

// readPassword hides input on a terminal and reads a plain line otherwise.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".breviobot-session.db"
	}
	return filepath.Join(home, ".breviobot-session.db")
}
