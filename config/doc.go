// Package config loads pipedeploy configuration with Viper.
//
// Values come from, lowest precedence first: registered defaults, a YAML
// config file, a .env file (via godotenv) and the process environment.
// Command-line flags are applied on top by the caller.
//
// # Usage
//
//	var cfg Config
//	err := config.LoadConfig("pipedeploy", &cfg,
//	    config.WithEnvPrefix("PIPEDEPLOY"),
//	    config.WithDefaults(map[string]any{"deploy.wait_for_state": true}),
//	)
//
// With a prefix, PIPEDEPLOY_CLIENT_ENDPOINT binds client.endpoint.
package config
