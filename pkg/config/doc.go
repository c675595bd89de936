// Package config provides configuration management for the relay.
//
// Configuration comes from an optional YAML file, environment variables,
// and a .env file. Every field has a default, so the relay can run from the
// environment alone as long as OPENAI_API_KEY is set.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("relay.yaml")
//
//  2. From a YAML file (or "" for none) with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("relay.yaml")
//
// Call LoadDotEnv first to pull variables from .env without overriding ones
// already present in the process environment.
//
// # Environment Variables
//
//   - OPENAI_API_KEY, OPENAI_BASE_URL, AZURE_API_VERSION configure the upstream
//   - ANTHROPIC_API_KEY sets the key clients must present
//   - HOST, PORT set the listen address
//   - REQUEST_TIMEOUT, CONNECT_TIMEOUT, READ_TIMEOUT, WRITE_TIMEOUT, POOL_TIMEOUT
//     accept seconds ("90") or Go durations ("1m30s")
//   - MAX_CONNECTIONS, MAX_KEEPALIVE_CONNECTIONS, MAX_RETRIES
//   - LOG_LEVEL, LOG_FILE_PATH, LOG_FILE_MAX_BYTES, LOG_FILE_BACKUP_COUNT, LOG_TO_CONSOLE
//   - CUSTOM_HEADER_<NAME> adds an upstream header; underscores become dashes
//   - RELAY_* variables cover the remaining settings
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and reloads it after
// a debounce interval. A reload that fails validation is logged and the
// previous configuration stays in effect.
//
// # Example Configuration
//
//	server:
//	  port: 8082
//
//	upstream:
//	  base_url: "https://api.openai.com/v1"
//	  read_timeout: 10m
//	  headers:
//	    X-Team: platform
//
//	retry:
//	  max_retries: 2
//	  base_delay: 1s
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "console"
package config
