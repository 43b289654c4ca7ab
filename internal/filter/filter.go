package filter

import (
	"context"
	"io"
	"log/slog"

	"github.com/handiism/artwork-downloader/internal/model"
)

// Predicate is a named include or exclude rule evaluated against a work's
// metadata. Match may do its own I/O (a history lookup, for example) and
// reports an error instead of guessing when it cannot decide.
type Predicate struct {
	// ID names the rule in configuration and logs.
	ID string

	// Exclude marks the predicate as an exclude rule. Exclude rules are
	// evaluated before include rules and any match rejects the work.
	Exclude bool

	// Match reports whether the rule applies to the work.
	Match func(ctx context.Context, art *model.Artwork) (bool, error)
}

// TagRules holds the tag allow and deny lists. Empty lists disable the
// corresponding check.
type TagRules struct {
	Allow []string
	Deny  []string
}

// enabled reports whether any tag checking is configured.
func (r TagRules) enabled() bool {
	return len(r.Allow) > 0 || len(r.Deny) > 0
}

// Pipeline decides whether a work should be downloaded.
//
// The policy, evaluated in order:
//
//  1. When tag rules are configured and the work's tags are known, a deny
//     tag rejects immediately; otherwise, when an allow list exists, at
//     least one allow tag must be present.
//  2. With no include predicates selected at all, the work is rejected.
//     A run with nothing selected downloads nothing.
//  3. Exclude predicates are OR'd: the first match rejects, skipping the
//     remaining predicates.
//  4. Include predicates are OR'd: the first match accepts; no match
//     rejects.
//
// A predicate returning an error is logged and the work is rejected; the
// run itself continues.
type Pipeline struct {
	tags     TagRules
	preds    []Predicate
	includes int
	logger   *slog.Logger
}

// New creates a Pipeline from tag rules and the selected predicates.
func New(tags TagRules, preds []Predicate, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	includes := 0
	for _, p := range preds {
		if !p.Exclude {
			includes++
		}
	}

	return &Pipeline{
		tags:     tags,
		preds:    preds,
		includes: includes,
		logger:   logger,
	}
}

// Evaluate reports whether the work passes the pipeline.
func (p *Pipeline) Evaluate(ctx context.Context, art *model.Artwork) bool {
	if p.tags.enabled() && art.HasTags() {
		if hasAny(art.Tags, p.tags.Deny) {
			return false
		}
		if len(p.tags.Allow) > 0 && !hasAny(art.Tags, p.tags.Allow) {
			return false
		}
	}

	// Nothing selected to include downloads nothing.
	if p.includes == 0 {
		return false
	}

	for _, pred := range p.preds {
		if !pred.Exclude {
			continue
		}
		match, err := pred.Match(ctx, art)
		if err != nil {
			p.logger.Error("filter predicate failed", "predicate", pred.ID, "work", art.ID, "error", err)
			return false
		}
		if match {
			return false
		}
	}

	for _, pred := range p.preds {
		if pred.Exclude {
			continue
		}
		match, err := pred.Match(ctx, art)
		if err != nil {
			p.logger.Error("filter predicate failed", "predicate", pred.ID, "work", art.ID, "error", err)
			return false
		}
		if match {
			return true
		}
	}

	return false
}

// Validity adapts the pipeline to the validity-check shape used for
// inline filtering during discovery.
func (p *Pipeline) Validity() func(ctx context.Context, art *model.Artwork) (bool, error) {
	return func(ctx context.Context, art *model.Artwork) (bool, error) {
		return p.Evaluate(ctx, art), nil
	}
}

// hasAny reports whether any element of list appears in tags.
func hasAny(tags, list []string) bool {
	for _, want := range list {
		for _, tag := range tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

// Everything returns an include predicate matching every work. It serves
// as the base include when a pipeline only narrows by exclusion.
func Everything() Predicate {
	return Predicate{
		ID: "everything",
		Match: func(ctx context.Context, art *model.Artwork) (bool, error) {
			return true, nil
		},
	}
}

// ByKind returns an include predicate matching works of the given kind.
func ByKind(kind model.Kind) Predicate {
	return Predicate{
		ID: kind.String(),
		Match: func(ctx context.Context, art *model.Artwork) (bool, error) {
			return art.Kind == kind, nil
		},
	}
}

// MultiPage returns an include predicate matching works with more than one
// page.
func MultiPage() Predicate {
	return Predicate{
		ID: "multi-page",
		Match: func(ctx context.Context, art *model.Artwork) (bool, error) {
			return art.PageCount() > 1, nil
		},
	}
}

// Downloaded returns an exclude predicate backed by a history lookup, used
// to skip works that are already saved.
func Downloaded(has func(id int64) (bool, error)) Predicate {
	return Predicate{
		ID:      "downloaded",
		Exclude: true,
		Match: func(ctx context.Context, art *model.Artwork) (bool, error) {
			return has(art.ID)
		},
	}
}
