// Command lgd is the L-Gates server and command-line client.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/client"
	"github.com/alfredjeanlab/lgates/internal/ui"
)

var (
	httpURL    string
	userID     string
	token      string
	jsonOutput bool

	gatesClient client.GatesClient
)

func defaultUser() string {
	if s := os.Getenv("LGATES_USER"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.email").Output()
	if err == nil {
		return strings.TrimSpace(string(out))
	}
	return ""
}

func defaultHTTPURL() string {
	if s := os.Getenv("LGATES_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("LGATES_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:           "lgd <command>",
	Short:         "L-Gates portfolio governance server and CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(ui.ShouldUseColor())
		gatesClient = client.NewHTTPClient(httpURL, client.WithUser(userID), client.WithToken(token))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if gatesClient != nil {
			gatesClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "server URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser(), "user id sent when the server does not verify tokens")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "portfolio", Title: "Portfolio:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Portfolio
	rootCmd.AddCommand(initiativeCmd)
	rootCmd.AddCommand(formCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(eventsCmd)

	// Administration
	rootCmd.AddCommand(roleCmd)
	rootCmd.AddCommand(configCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
