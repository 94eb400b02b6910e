/*
Package secrets resolves ${secret:name} references in configuration values.

Credentials such as the enhancement generator API key, the Postgres DSN and
the catalog Git token can be written in config.yaml as references instead of
literal values:

	enhancement:
	  generator:
	    api_key: ${secret:generator-api-key}

A Resolver looks each name up in its providers in order and caches the
value for Config.CacheTTL. Two providers are built in:

  - EnvProvider reads POLICYFORGE_SECRET_<NAME>, with the name upper-cased
    and hyphens turned into underscores.
  - FileProvider reads <dir>/<name>, the layout Kubernetes uses for mounted
    secrets. Files must be mode 0600 or 0400.

References are resolved once, when a command starts; rotating a secret takes
a restart.

Secret names are redacted in log output.
*/
package secrets
