package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration with secrets redacted",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, path, _, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n", path)
	fmt.Fprint(out, string(data))
	fmt.Fprintf(out, "# rtk.api_token: %s\n", secretState(cfg.RTK.APIToken))
	fmt.Fprintf(out, "# livekit.api_secret: %s\n", secretState(cfg.LiveKit.APISecret))
	return nil
}

func secretState(v string) string {
	if v == "" {
		return "unset"
	}
	return "set"
}
