package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/boardcall/internal/authclient"
	"github.com/vovakirdan/boardcall/internal/callengine"
	"github.com/vovakirdan/boardcall/internal/session"
)

var (
	fetchServer  string
	fetchVariant string
	fetchName    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Request a credential from a running server the way a call panel does",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchServer, "server", "", "server base URL (default session.server_url)")
	fetchCmd.Flags().StringVar(&fetchVariant, "variant", session.HostVariant.Name, "panel variant: host or audience")
	fetchCmd.Flags().StringVar(&fetchName, "name", "", "participant display name")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, _, logger, err := loadConfig()
	if err != nil {
		return err
	}

	variant, ok := session.VariantByName(fetchVariant)
	if !ok {
		return fmt.Errorf("unknown variant %q", fetchVariant)
	}
	server := fetchServer
	if server == "" {
		server = cfg.Session.ServerURL
	}

	client := authclient.New(server, variant.Endpoint, variant.DefaultName, &http.Client{Timeout: cfg.RTK.Timeout})
	cred, err := client.Acquire(cmd.Context(), callengine.Identity{DisplayName: fetchName})
	if err != nil {
		logger.Error().Err(err).Str("server", server).Msg("fetch failed")
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "participant_id: %s\n", cred.ParticipantID)
	fmt.Fprintf(out, "meeting_id:     %s\n", cred.CallID)
	if cred.ExpiresAt.IsZero() {
		fmt.Fprintln(out, "expires_at:     unknown (opaque token)")
	} else {
		fmt.Fprintf(out, "expires_at:     %s (in %s)\n", cred.ExpiresAt.Format(time.RFC3339), time.Until(cred.ExpiresAt).Round(time.Second))
	}
	return nil
}
