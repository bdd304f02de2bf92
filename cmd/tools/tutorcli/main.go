// Command tutorcli is a terminal client for the codetutor broker. It runs
// the same conversation and mode detection the browser extension does.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/codetutor/backend/internal/client"
	"github.com/zhouzirui/codetutor/backend/internal/logging"
)

var (
	serverURL   string
	identity    string
	displayName string
	logLevel    string

	logger = zap.NewNop()
)

func main() {
	// .env 可选
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tutorcli",
		Short:        "Terminal client for the codetutor broker",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(logging.Config{Level: logLevel, Development: true})
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&serverURL, "server", envOr("TUTOR_SERVER", "http://localhost:3000"), "broker base URL")
	flags.StringVar(&identity, "identity", envOr("TUTOR_IDENTITY", "unknown"), "caller identity (learner code or staff login)")
	flags.StringVar(&displayName, "name", envOr("TUTOR_NAME", "User"), "display name used in greetings")
	flags.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "debug, info, warn or error")

	root.AddCommand(
		newHealthCmd(),
		newModesCmd(),
		newSaveCredentialCmd(),
		newAskCmd(),
		newChatCmd(),
	)
	return root
}

func newClient() *client.Client {
	return client.New(serverURL, client.WithLogger(logger))
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show broker health",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newClient().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s  active tokens: %d  shared pool: %d\n",
				okStyle.Render("●"), h.Status, h.ActiveTokens, h.SharedPoolSize)
			return nil
		},
	}
}

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List the broker's modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := newClient().Modes(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range profiles {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", badge(p), mutedStyle.Render(p.Description))
			}
			return nil
		},
	}
}

func newSaveCredentialCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save-credential CREDENTIAL",
		Short: "Check and store a personal credential for --identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			valid, reason, err := c.TestCredential(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("credential rejected: %s", reason)
			}
			if err := c.SaveCredential(cmd.Context(), identity, displayName, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s credential saved for %s (%s)\n",
				okStyle.Render("✓"), identity, logging.Redact(args[0]))
			return nil
		},
	}
}
