// Package config handles loading and validating gateway configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Reading the device access token from a separate file
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The access token should live in its own file (mqtt.auth.token_file)
//     or be set via GATEWAY_ACCESS_TOKEN, never committed in config.yaml
//   - The token file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.Topic)
package config
