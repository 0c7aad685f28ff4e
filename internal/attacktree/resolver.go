package attacktree

import (
	"context"
	"errors"
	"log/slog"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// Resolver decides which related patterns a build expands.
type Resolver struct {
	store  knowledge.Store
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger means slog.Default().
func NewResolver(store knowledge.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Relations decodes rec's related patterns, keeping the given natures.
func (r *Resolver) Relations(rec *capec.Record, natures ...capec.Nature) []capec.Edge {
	return capec.ParseRelations(rec.RelatedPatterns, natures...)
}

// IsExpandable reports whether id exists and is a Standard or Detailed
// pattern. Meta patterns are too coarse to expand.
func (r *Resolver) IsExpandable(ctx context.Context, id string) bool {
	ok, _ := r.expandable(ctx, id)
	return ok
}

// expandable also reports whether the record exists at all.
func (r *Resolver) expandable(ctx context.Context, id string) (ok, found bool) {
	rec, err := r.store.GetRecord(ctx, id)
	switch {
	case errors.Is(err, knowledge.ErrNotFound):
		r.logger.Warn("related pattern not found", "id", capec.FormatID(id))
		return false, false
	case err != nil:
		r.logger.Warn("related pattern lookup failed", "id", capec.FormatID(id), "error", err)
		return false, false
	}
	return rec.Abstraction.Expandable(), true
}

// Targets returns the expandable related pattern ids of rec in order,
// and separately the related ids with no record in the store.
func (r *Resolver) Targets(ctx context.Context, rec *capec.Record, natures ...capec.Nature) (targets, missing []string) {
	for _, e := range r.Relations(rec, natures...) {
		switch ok, found := r.expandable(ctx, e.Target); {
		case ok:
			targets = append(targets, e.Target)
		case !found:
			missing = append(missing, e.Target)
		}
	}
	return targets, missing
}
