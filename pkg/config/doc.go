// Package config loads and validates policyforge configuration.
//
// A configuration file is YAML decoded on top of Default, so a file only
// needs the fields it changes. Component sections (manager, engine, storage,
// versioning, enhancement, scheduler, catalog.git) use the component
// packages' own Config types and their Validate methods.
//
// # Loading
//
//	cfg, err := config.LoadConfig("policyforge.yaml")
//
// or, with .env preloading and environment overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("policyforge.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention POLICYFORGE_SECTION_FIELD:
//
//   - POLICYFORGE_STORAGE_BACKEND overrides storage.backend
//   - POLICYFORGE_CATALOG_GIT_AUTH_TOKEN overrides catalog.git.auth.token
//   - POLICYFORGE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Before overrides are applied, a .env file next to the configuration file
// and one in the working directory are loaded with godotenv. Variables that
// are already set in the process environment are not replaced. ${VAR}
// references in the file are then expanded from the environment.
//
// Precedence, later wins: defaults, YAML file, environment.
//
// # Singleton
//
//	if err := config.Initialize("policyforge.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// # Validation
//
// Validate collects every problem into a ValidationError:
//
//	configuration validation failed with 2 errors:
//	  - catalog.mode: invalid catalog mode "svn": must be 'file' or 'git'
//	  - telemetry.logging.level: invalid logging level "loud": ...
//
// # Example Configuration
//
//	catalog:
//	  mode: file
//	  path: ./catalog
//	  watch: true
//
//	storage:
//	  backend: sqlite
//	  sqlite:
//	    path: data/policyforge.db
//
//	enhancement:
//	  enabled: true
//	  generator:
//	    endpoint: https://llm.internal/v1/generate
//	    api_key: ${GENERATOR_API_KEY}
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
