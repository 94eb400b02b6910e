// Package logging builds the process *slog.Logger.
//
// Components take a *slog.Logger and tag it with a "component" attribute;
// this package only decides what handler sits underneath:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// # Context fields
//
// Request-scoped identifiers travel in the context and are added to every
// record logged with it:
//
//	ctx = logging.WithOrganizationID(ctx, "org-7")
//	ctx = logging.WithPolicyID(ctx, p.ID)
//	logger.InfoContext(ctx, "policy assembled", "clauses", len(p.Clauses))
//
// FromContext returns a logger with the fields attached, for code that logs
// without passing the context.
//
// # Redaction
//
// With RedactPII set, message text and string attributes are matched against
// the built-in patterns (bearer tokens, API keys, e-mail addresses, IBANs,
// SSNs, phone numbers, password assignments) and any configured ones.
// Attributes whose key names a secret ("api_key", "token", "dsn", ...) are
// masked whole, keeping a four character prefix.
package logging
