package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rfharvest/pkg/auth"
	"rfharvest/pkg/catalog"
	"rfharvest/pkg/config"
	"rfharvest/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Roboflow API credential",
	Long: `Manage the stored Roboflow API credential.

The credential is stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (ROBOFLOW_API_KEY, read-only)

Find your API key under Settings > API Keys in the Roboflow dashboard.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the API key securely",
	Example: `  # Interactive login (key is not echoed)
  rfharvest auth login

  # Non-interactive
  rfharvest auth login --key $ROBOFLOW_API_KEY`,
	Args: cobra.NoArgs,
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	Run:   runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured credential and verify it",
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

var loginKey string

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVar(&loginKey, "key", "", "API key (prompted for when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) {
	key := strings.TrimSpace(loginKey)

	if key == "" {
		fmt.Print("Roboflow API key: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			ui.PrintError("Failed to read API key: %v", err)
			os.Exit(1)
		}
		key = strings.TrimSpace(string(raw))
	}

	if key == "" {
		ui.PrintError("API key must not be empty")
		os.Exit(1)
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Cannot open credential store: %v", err)
		os.Exit(1)
	}

	if err := manager.Store(&auth.Credential{APIKey: key}); err != nil {
		ui.PrintError("Failed to store credential: %v", err)
		os.Exit(1)
	}

	ui.PrintSuccess("API key stored")
	ui.PrintInfo("Key", auth.MaskKey(key))
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Cannot open credential store: %v", err)
		os.Exit(1)
	}

	if err := manager.Delete(auth.DefaultLabel); err != nil {
		ui.PrintError("Failed to remove credential: %v", err)
		os.Exit(1)
	}

	ui.PrintSuccess("Stored API key removed")
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Cannot open credential store: %v", err)
		os.Exit(1)
	}

	cred, err := manager.RetrieveDefault()
	if err != nil {
		ui.PrintWarning("No API key configured")
		ui.PrintInfo("Hint", "run 'rfharvest auth login' or set ROBOFLOW_API_KEY")
		return
	}

	ui.PrintInfo("Key", auth.MaskKey(cred.APIKey))
	if !cred.LastModified.IsZero() {
		ui.PrintInfo("Stored", cred.LastModified.Format(time.RFC1123))
	}

	cfg := config.DefaultConfig()
	client := catalog.NewClient(catalog.Options{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cred.APIKey,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if client.CheckKey(ctx) {
		ui.PrintSuccess("API key verified against the catalog API")
	} else {
		ui.PrintWarning("API key could not be verified")
	}
}
