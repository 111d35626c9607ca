// Package cli provides the command-line interface for the predictor.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"stock-predictor/internal/marketdata"
	"stock-predictor/internal/security"
)

// addAuthCommands adds authentication and credential commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Kite session and credential management",
	}

	cmd.AddCommand(newAuthLoginCmd(app))
	cmd.AddCommand(newAuthLogoutCmd(app))
	cmd.AddCommand(newAuthStatusCmd(app))
	cmd.AddCommand(newAuthSetupCmd(app))
	cmd.AddCommand(newAuthShowCmd(app))

	rootCmd.AddCommand(cmd)
}

func newAuthLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to Kite Connect for price data",
		Long: `Login to Zerodha Kite Connect.

Opens the Kite OAuth page in a browser. After logging in, paste the
request_token from the redirect URL to complete the session. The access
token is persisted until it expires (6 AM IST the next day).`,
		Example: `  predictor auth login
  predictor auth login --token=<request_token>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			kite, err := kiteForAuth(app, output)
			if err != nil {
				return err
			}

			if kite.IsAuthenticated() {
				output.Success("✓ Already logged in")
				return nil
			}

			token, _ := cmd.Flags().GetString("token")
			if token != "" {
				return completeKiteLogin(ctx, app, output, kite, token)
			}

			loginURL := kite.LoginURL()
			output.Info("Opening Kite login page...")
			output.Println()
			output.Bold("Login URL:")
			output.Println(loginURL)
			output.Println()

			if err := openURL(loginURL); err != nil {
				output.Warning("Could not open browser automatically")
			}

			output.Info("After logging in, you'll be redirected to a URL like:")
			output.Dim("  https://your-redirect-url.com/?request_token=XXXXXX&status=success")
			output.Println()
			output.Bold("Paste the request_token value here:")

			reader := bufio.NewReader(os.Stdin)
			fmt.Print("> ")
			inputToken, _ := reader.ReadString('\n')
			inputToken = strings.TrimSpace(inputToken)

			if inputToken == "" {
				output.Error("No token provided")
				return fmt.Errorf("no token provided")
			}

			return completeKiteLogin(ctx, app, output, kite, inputToken)
		},
	}

	cmd.Flags().String("token", "", "Request token from redirect URL")

	return cmd
}

func completeKiteLogin(ctx context.Context, app *App, output *Output, kite *marketdata.KiteSource, token string) error {
	safeLog := security.NewSafeLogger(app.Logger)
	safeLog.Debug().Str("request_token", token).Msg("Completing Kite login")

	if err := kite.CompleteLogin(ctx, token); err != nil {
		output.Error("Login failed: %v", err)
		if app.Audit != nil {
			_ = app.Audit.LogLogin(ctx, false, err.Error())
		}
		return err
	}

	if app.Audit != nil {
		_ = app.Audit.LogLogin(ctx, true, "")
	}

	output.Success("✓ Login successful")
	output.Dim("Session is valid until 6 AM IST tomorrow.")
	output.Dim("Fetch prices with 'predictor data fetch <ticker>'.")
	return nil
}

// kiteForAuth resolves a Kite source with an API secret, unlocking the
// encrypted credential store if the config carries no plain credentials.
func kiteForAuth(app *App, output *Output) (*marketdata.KiteSource, error) {
	if app.Kite != nil && app.Config.Credentials.Kite.APISecret != "" {
		return app.Kite, nil
	}

	if app.Credentials == nil || !app.Credentials.HasEncryptedCredentials() {
		output.Error("Kite credentials not configured.")
		output.Dim("Run 'predictor config init', fill in credentials.toml, then 'predictor auth setup'.")
		return nil, fmt.Errorf("kite credentials not configured")
	}

	creds, err := unlockCredentials(app, output)
	if err != nil {
		return nil, err
	}
	if creds.Kite.APIKey == "" || creds.Kite.APISecret == "" {
		output.Error("Encrypted store has no Kite credentials.")
		return nil, fmt.Errorf("kite credentials not configured")
	}

	return marketdata.NewKiteSource(marketdata.KiteConfig{
		APIKey:      creds.Kite.APIKey,
		APISecret:   creds.Kite.APISecret,
		AccessToken: creds.Kite.AccessToken,
	}), nil
}

// unlockCredentials prompts for the master password and decrypts the
// credential store.
func unlockCredentials(app *App, output *Output) (*security.PlainCredentials, error) {
	ctx := context.Background()

	password, err := promptPassword(output, "Master password")
	if err != nil {
		return nil, err
	}

	if err := app.Credentials.Initialize(password); err != nil {
		if app.Audit != nil {
			_ = app.Audit.LogCredentialAccess(ctx, false, err.Error())
		}
		output.Error("Failed to unlock credentials: %v", err)
		return nil, err
	}

	creds, err := app.Credentials.GetCredentials()
	if err != nil {
		if app.Audit != nil {
			_ = app.Audit.LogCredentialAccess(ctx, false, err.Error())
		}
		return nil, err
	}

	if app.Audit != nil {
		_ = app.Audit.LogCredentialAccess(ctx, true, "")
	}
	return creds, nil
}

func promptPassword(output *Output, label string) (string, error) {
	output.Print("%s: ", label)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	output.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimSpace(string(data))
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}

func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}

func newAuthLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the Kite session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if app.Kite == nil {
				output.Warning("No active session found.")
				return nil
			}
			if !app.Kite.IsAuthenticated() {
				output.Warning("Not currently logged in.")
				return nil
			}

			if err := app.Kite.Logout(ctx); err != nil {
				output.Error("Logout failed: %v", err)
				return err
			}

			if app.Audit != nil {
				_ = app.Audit.LogLogout(ctx)
			}

			output.Success("✓ Logged out")
			output.Dim("The persisted session token has been removed.")
			return nil
		},
	}
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication and credential status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			kiteAuthenticated := app.Kite != nil && app.Kite.IsAuthenticated()
			encrypted := app.Credentials != nil && app.Credentials.HasEncryptedCredentials()

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"kite_configured":       app.Kite != nil,
					"kite_authenticated":    kiteAuthenticated,
					"encrypted_credentials": encrypted,
				})
			}

			output.Println()
			output.Bold("Kite Connect")
			if app.Kite == nil {
				output.Printf("  Configured:    %s\n", output.Red("no"))
				output.Dim("  Set api_key in credentials.toml or KITE_API_KEY.")
			} else {
				output.Printf("  Configured:    %s\n", output.Green("yes"))
				output.Printf("  API Key:       %s\n", security.MaskCredential(app.Config.Credentials.Kite.APIKey))
				if kiteAuthenticated {
					output.Printf("  Session:       %s\n", output.Green("active"))
				} else {
					output.Printf("  Session:       %s\n", output.Yellow("expired or missing"))
					output.Dim("  Run 'predictor auth login' to start a session.")
				}
			}

			output.Println()
			output.Bold("Credential Store")
			if encrypted {
				output.Printf("  Encrypted:     %s\n", output.Green("yes"))
			} else {
				output.Printf("  Encrypted:     %s\n", output.Yellow("no"))
				output.Dim("  Run 'predictor auth setup' to encrypt credentials.toml.")
			}
			return nil
		},
	}
}

func newAuthSetupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Encrypt credentials with a master password",
		Long: `Encrypt the plain-text credentials.toml into credentials.enc.

The plain file is securely deleted after migration. The master password is
required to unlock credentials in future sessions; it is never stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if app.Credentials == nil {
				return fmt.Errorf("credential manager not available")
			}

			if app.Credentials.HasEncryptedCredentials() {
				output.Info("Credentials are already encrypted.")
				output.Dim("Use 'predictor auth show' to inspect them.")
				return nil
			}

			password, err := promptPassword(output, "Choose a master password")
			if err != nil {
				return err
			}
			confirm, err := promptPassword(output, "Confirm master password")
			if err != nil {
				return err
			}
			if password != confirm {
				output.Error("Passwords do not match")
				return fmt.Errorf("passwords do not match")
			}

			if err := app.Credentials.Initialize(password); err != nil {
				if app.Audit != nil {
					_ = app.Audit.LogCredentialUpdate(ctx, false, err.Error())
				}
				output.Error("Setup failed: %v", err)
				return err
			}

			if app.Audit != nil {
				_ = app.Audit.LogCredentialUpdate(ctx, true, "")
			}

			output.Success("✓ Credentials encrypted")
			output.Dim("The plain-text credentials.toml has been securely deleted.")
			return nil
		},
	}
}

func newAuthShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show stored credentials (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Credentials == nil || !app.Credentials.HasEncryptedCredentials() {
				output.Warning("No encrypted credentials found. Run 'predictor auth setup' first.")
				return nil
			}

			creds, err := unlockCredentials(app, output)
			if err != nil {
				return err
			}

			masked := security.RedactFields(map[string]interface{}{
				"api_key":      creds.Kite.APIKey,
				"api_secret":   creds.Kite.APISecret,
				"access_token": creds.Kite.AccessToken,
			})

			if output.IsJSON() {
				return output.JSON(masked)
			}

			output.Println()
			output.Bold("Kite Connect")
			output.Printf("  API Key:      %s\n", masked["api_key"])
			output.Printf("  API Secret:   %s\n", masked["api_secret"])
			if creds.Kite.AccessToken != "" {
				output.Printf("  Access Token: %s\n", masked["access_token"])
			}
			if creds.Redis.Password != "" {
				output.Println()
				output.Bold("Redis")
				output.Printf("  Password:     %s\n", security.MaskCredential(creds.Redis.Password))
			}
			return nil
		},
	}
}
