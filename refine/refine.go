// Package refine post-processes raw transcripts through a language model.
// Refinement is strictly best-effort: any failure hands back the raw text.
package refine

import (
	"context"
	"strings"

	"mutter/log"
)

type Refiner interface {
	Refine(ctx context.Context, text string) (string, error)
}

// Apply runs text through r and returns the result, or the input unchanged
// when r is nil, errors, or produces a blank result. The user still gets
// their words either way.
func Apply(ctx context.Context, r Refiner, text string) string {
	if r == nil || strings.TrimSpace(text) == "" {
		return text
	}

	refined, err := r.Refine(ctx, text)
	if err != nil {
		log.Warnf("refine failed, delivering raw transcript: %v", err)
		return text
	}
	if strings.TrimSpace(refined) == "" {
		log.Warn("refine returned empty text, delivering raw transcript")
		return text
	}
	return refined
}
