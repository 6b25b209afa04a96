package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/project-kessel/remoteclaim/internal/config"
	"github.com/project-kessel/remoteclaim/internal/service"
	"github.com/project-kessel/remoteclaim/internal/session"
)

type resolveOptions struct {
	source     string
	username   string
	clientID   string
	clientIDs  []string
	attributes []string
	output     string
}

// NewResolveCmd creates the resolve command
func NewResolveCmd() *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one data source for a user and print its JSON",
		Long: `Resolve a configured data source once for the given user session and
print the remote JSON payload. Useful to check endpoint, parameters and
client credentials before issuing tokens.

Examples:
  remoteclaim resolve --config config.yaml --source authz --username alice
  remoteclaim resolve --source authz --username alice --client-id web --attribute dept=eng`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "data source name (required)")
	cmd.Flags().StringVar(&opts.username, "username", "", "session username")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "", "client of the session; empty selects the legacy path")
	cmd.Flags().StringSliceVar(&opts.clientIDs, "client-ids", nil, "client ids of a session without a concrete client")
	cmd.Flags().StringArrayVar(&opts.attributes, "attribute", nil, "user attribute name=value, repeatable")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	_ = cmd.MarkFlagRequired("source")

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runResolve(cmd *cobra.Command, opts *resolveOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if opts.output != "json" && opts.output != "yaml" {
		return fmt.Errorf("invalid --output %q, expected json or yaml", opts.output)
	}

	identity, err := opts.identity()
	if err != nil {
		return err
	}

	provider := config.NewProvider(cfg)
	sources, err := provider.DataSourceRegistry()
	if err != nil {
		return err
	}

	ds := sources.Get(opts.source)
	if ds == nil {
		return fmt.Errorf("unknown data source %q (configured: %s)", opts.source, strings.Join(sources.Names(), ", "))
	}

	input := &service.DataSourceInput{Identity: identity}
	if identity.Client != nil {
		input.Attributes = session.NewIssuanceContext()
	}

	result, err := ds.Fetch(cmd.Context(), input)
	if err != nil {
		return err
	}

	return writePayload(cmd, opts, result.Data)
}

func writePayload(cmd *cobra.Command, opts *resolveOptions, data []byte) error {
	if opts.output == "yaml" {
		out, err := yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("data source %s returned invalid JSON: %w", opts.source, err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}

	var pretty json.RawMessage = data
	if !json.Valid(pretty) {
		return fmt.Errorf("data source %s returned invalid JSON", opts.source)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

func (o *resolveOptions) identity() (*session.Identity, error) {
	identity := &session.Identity{
		Username:  o.username,
		ClientIDs: o.clientIDs,
	}
	if o.clientID != "" {
		identity.Client = &session.ClientSession{ClientID: o.clientID}
	}

	for _, attr := range o.attributes {
		name, value, ok := strings.Cut(attr, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --attribute %q, expected name=value", attr)
		}
		if identity.Attributes == nil {
			identity.Attributes = make(map[string][]string)
		}
		identity.Attributes[name] = append(identity.Attributes[name], value)
	}

	return identity, nil
}
