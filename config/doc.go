// Package config provides configuration loading and validation for diskcli.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right, or
//     config.yaml in the home directory
//  3. Environment variables (DISKCLI_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load(nil, cmd.Flags())
//	if err != nil {
//	    return err
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with DISKCLI_ prefix:
//   - home → DISKCLI_HOME
//   - backend.endpoint → DISKCLI_BACKEND_ENDPOINT
//   - list.name_width → DISKCLI_LIST_NAME_WIDTH
//
// # Validation
//
//   - Endpoint must be a URL and the timeout positive
//   - Name width must be 0 (fit) to 200
//   - Log level must be debug, info, warn, or error; format text or json
package config
