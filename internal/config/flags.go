package config

import "github.com/spf13/pflag"

// configFlag binds a command-line flag to a config key
type configFlag struct {
	name  string
	key   string
	usage string
	kind  string
}

var configFlags = []configFlag{
	{name: "server-http-port", key: "server.http_port", usage: "HTTP listen port", kind: "int"},
	{name: "server-shutdown-timeout", key: "server.shutdown_timeout", usage: "graceful shutdown timeout", kind: "string"},
	{name: "issuer-url", key: "issuer_url", usage: "issuer URL placed in the iss claim", kind: "string"},
	{name: "http-timeout", key: "http.timeout", usage: "timeout for outbound claim and token requests", kind: "string"},
	{name: "log-level", key: "observability.log_level", usage: "log level (debug, info, warn, error)", kind: "string"},
	{name: "log-format", key: "observability.log_format", usage: "log format (json, text)", kind: "string"},
	{name: "observability", key: "observability.type", usage: "observer type (logging, metrics, composite, noop)", kind: "string"},
}

// RegisterFlags adds the config override flags to fs. Defaults are left
// empty; only flags the user sets override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, f := range configFlags {
		switch f.kind {
		case "int":
			fs.Int(f.name, 0, f.usage)
		default:
			fs.String(f.name, "", f.usage)
		}
	}
}

// GetFlagMapping returns flag name to config key
func GetFlagMapping() map[string]string {
	mapping := make(map[string]string, len(configFlags))
	for _, f := range configFlags {
		mapping[f.name] = f.key
	}
	return mapping
}
