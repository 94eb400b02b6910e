// Package manager ties the policy pipeline together.
//
// A Manager owns the template catalog and the path from questionnaire answers
// to a stored policy: it loads templates from a source.Source, validates them
// and swaps them into a Registry atomically, so a broken catalog edit never
// replaces a working one. Policy operations then run the rules engine and the
// assembler against a registered template and persist the result through a
// storage.Store.
//
// # Catalog
//
// Load reads every template from the source, lints each one and rejects the
// whole set if any template has a blocking problem or two templates share a
// code. Warnings are logged. Watch reloads on source change events until its
// context is cancelled.
//
//	mgr := manager.New(src, store, nil, logger)
//	if err := mgr.Load(ctx); err != nil {
//	    return err
//	}
//	go mgr.Watch(ctx)
//
// # Policies
//
// CreatePolicy and Reassemble evaluate the template rules, render the
// included clauses and store the outcome. When an enhancement queue is
// attached the stored revision is queued for prose rewriting; the call does
// not wait for it.
//
//	p, err := mgr.CreatePolicy(ctx, manager.CreateRequest{
//	    OrganizationID: "org-1",
//	    TemplateCode:   "aml",
//	    Name:           "AML policy",
//	    Answers:        set,
//	})
//
// Publishing, restoring and diffing delegate to versioning.Manager.
//
// Every write that reads a policy first uses the store's revision
// compare-and-swap and retries on conflict, so concurrent editors and the
// enhancement worker never overwrite each other silently.
package manager
