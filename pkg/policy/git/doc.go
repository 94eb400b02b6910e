// Package git keeps a local clone of a template catalog repository.
//
// A Repository clones the configured branch into a local directory and pulls
// it on demand. Pull reports which files changed between the old and new
// HEAD so callers can skip reloads when nothing in the catalog moved.
//
// Authentication supports HTTPS tokens, SSH keys and anonymous access to
// public repositories:
//
//	repo, err := git.NewRepository(git.Config{
//	    Repository: "https://github.com/acme/policy-catalog.git",
//	    Branch:     "main",
//	    Path:       "catalog",
//	    Auth:       git.AuthConfig{Type: "token", Token: os.Getenv("CATALOG_TOKEN")},
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//	    return err
//	}
//	src := source.NewFileSource(repo.CatalogPath(), logger)
//
// source.GitSource builds on Repository to serve templates and change events
// to the policy manager.
package git
