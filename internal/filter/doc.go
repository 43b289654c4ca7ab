// Package filter decides which discovered works get downloaded.
//
// # Policy
//
// A Pipeline combines tag allow/deny lists with named include and exclude
// predicates:
//
//	pipeline := filter.New(
//	    filter.TagRules{Deny: []string{"wip"}},
//	    []filter.Predicate{
//	        filter.ByKind(model.KindIllustration),
//	        filter.ByKind(model.KindManga),
//	        filter.Downloaded(store.Has),
//	    },
//	    logger,
//	)
//
//	if pipeline.Evaluate(ctx, art) {
//	    // dispatch the download
//	}
//
// Deny tags reject first, then the allow list (when present) must match.
// Exclude predicates run before include predicates and any match rejects.
// Include predicates are ORed, and selecting none of them rejects every
// work, so an empty selection downloads nothing.
//
// Predicate errors never abort a run; the work is rejected and the error
// is logged.
package filter
