// Package source provides template catalog sources for the policy manager.
//
// A source loads parsed templates and reports when they may have changed.
// FileSource reads YAML catalog files from disk and watches them with
// fsnotify; MemorySource holds templates in memory for tests and embedding.
//
//	src := source.NewFileSource("catalog/", logger)
//	templates, err := src.LoadTemplates(ctx)
//
//	events, err := src.Watch(ctx)
//	for ev := range events {
//	    if ev.Error != nil {
//	        logger.Error("watch error", "error", ev.Error)
//	        continue
//	    }
//	    templates, err = src.LoadTemplates(ctx)
//	}
package source
