package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/project-kessel/remoteclaim/internal/config"
)

// configFile is the --config flag shared by every command
var configFile string

// NewRootCmd creates the remoteclaim root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remoteclaim",
		Short: "Issue tokens carrying claims resolved from remote JSON endpoints",
		Long: `remoteclaim issues tokens whose claims are enriched with JSON fetched from
remote claim endpoints, optionally authenticated with a client credentials token.

Within one issuance pass each remote endpoint is called at most once and the
payload is shared by every token of the pass.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (yaml, json or toml); defaults to $"+config.EnvPrefix+"CONFIG")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewResolveCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// configPath resolves the config file from the flag or the environment
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv(config.EnvPrefix + "CONFIG")
}

// loadConfig loads configuration with flags layered on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader, err := config.NewLoaderWithFlags(configPath(), cmd.Flags())
	if err != nil {
		return nil, err
	}
	return loader.Get()
}
