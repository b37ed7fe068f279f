package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/boardcall/internal/app"
	"github.com/vovakirdan/boardcall/internal/service/calls"
)

var (
	issueAudience bool
	issueName     string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint one credential through the configured engine and print it",
	RunE:  runIssue,
}

func init() {
	issueCmd.Flags().BoolVar(&issueAudience, "audience", false, "use the audience call target")
	issueCmd.Flags().StringVar(&issueName, "name", "", "participant display name")
}

func runIssue(cmd *cobra.Command, args []string) error {
	cfg, _, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := app.NewService(&cfg, logger)
	if err != nil {
		return err
	}

	audience := calls.AudienceHost
	if issueAudience {
		audience = calls.AudienceViewer
	}
	cred, err := svc.IssueCredential(cmd.Context(), audience, issueName)
	if err != nil {
		logger.Error().Err(err).Msg("issue failed")
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cred)
}
