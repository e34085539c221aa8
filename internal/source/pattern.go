package source

import (
	"context"
	"strconv"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
	"github.com/quadfuse/quadfuse/internal/store/patternstore"
)

// PatternAdapter matches query terms against learned pattern triggers,
// filtered by a minimum confidence threshold.
type PatternAdapter struct {
	store *patternstore.Store
}

// NewPatternAdapter creates a pattern adapter over the given store.
func NewPatternAdapter(store *patternstore.Store) *PatternAdapter {
	return &PatternAdapter{store: store}
}

// Name returns "pattern".
func (a *PatternAdapter) Name() string { return Pattern }

// Query matches patterns at or above p.MinPatternConfidence.
func (a *PatternAdapter) Query(ctx context.Context, p Params) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeSourceTimeout, "pattern match cancelled", err)
	}

	scored := a.store.Match(p.Query, p.MinPatternConfidence, p.TopK)
	hits := make([]Hit, len(scored))
	for i, s := range scored {
		hits[i] = Hit{
			ID:       s.Pattern.ID,
			RawScore: s.Score,
			Metadata: map[string]string{
				"trigger":    s.Pattern.Trigger,
				"action":     s.Pattern.Action,
				"confidence": strconv.FormatFloat(s.Pattern.Confidence, 'f', -1, 64),
			},
		}
	}
	return hits, nil
}
