package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	auth "github.com/marketsim/portal-auth"
	"github.com/marketsim/portal-auth/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var username, password, portal string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the trading backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				username = os.Getenv("PORTAL_USERNAME")
			}
			if password == "" {
				password = os.Getenv("PORTAL_PASSWORD")
			}
			if username == "" {
				return fmt.Errorf("username is required (use --username flag or PORTAL_USERNAME env var)")
			}

			pw, err := promptPassword(cmd, "Password: ", password)
			if err != nil {
				return err
			}

			return withApp(cmd, func(app *App) error {
				req := auth.LoginRequest{Username: username, Password: pw}
				user, err := app.Manager.LoginForPortal(cmd.Context(), req, auth.ParsePortal(portal))
				if err != nil {
					return fmt.Errorf("login failed: %s", auth.UserMessage(err))
				}

				printUser(cmd.OutOrStdout(), "Login successful!", user)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (or set PORTAL_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set PORTAL_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&portal, "portal", string(auth.PortalUser), "Portal to sign in to: user or admin")

	return cmd
}

// NewSignupCmd creates the signup command
func NewSignupCmd() *cobra.Command {
	var req auth.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a user account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd, "Choose a password: ", req.Password)
			if err != nil {
				return err
			}
			req.Password = password

			if err := req.Validate(); err != nil {
				return fmt.Errorf("signup failed: %s", auth.UserMessage(err))
			}

			return withApp(cmd, func(app *App) error {
				user, err := app.Manager.Signup(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("signup failed: %s", auth.UserMessage(err))
				}

				printUser(cmd.OutOrStdout(), "Account created!", user)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "Full name")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (will prompt if not provided)")

	return cmd
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				if !app.Manager.Snapshot().IsAuthenticated {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
					return nil
				}
				app.Manager.Logout(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				snap := app.Manager.Snapshot()
				if !snap.IsAuthenticated {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
					return nil
				}
				printUser(cmd.OutOrStdout(), "Signed in.", snap.User)
				return nil
			})
		},
	}
}

func withApp(cmd *cobra.Command, fn func(app *App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}

// promptPassword returns current, or reads a password from the terminal
func promptPassword(cmd *cobra.Command, prompt, current string) (string, error) {
	if current != "" {
		return current, nil
	}

	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(bytePassword), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag)")
	}
	return line, nil
}

func printUser(w io.Writer, headline string, user *auth.User) {
	fmt.Fprintln(w, headline)
	if user == nil {
		return
	}
	fmt.Fprintf(w, "  User: %s (%s)\n", user.DisplayName(), user.Email)
	if user.IsAdmin {
		fmt.Fprintln(w, "  Role: Admin")
	}
}
