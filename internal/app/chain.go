package app

import (
	"context"
	"fmt"

	"planningsprite/internal/ics"
	"planningsprite/internal/plan"
)

// ParserChain routes calendar files to the local parser and every other
// media type to the remote one.
type ParserChain struct {
	Local  plan.Parser
	Remote plan.Parser
}

func (c ParserChain) ParseDocument(ctx context.Context, data []byte, mediaType string) (plan.ParsedDocument, error) {
	if ics.IsCalendar(mediaType) && c.Local != nil {
		return c.Local.ParseDocument(ctx, data, mediaType)
	}
	if c.Remote == nil {
		return plan.ParsedDocument{}, fmt.Errorf("%w: no parser for %q", ErrNotConfigured, mediaType)
	}
	return c.Remote.ParseDocument(ctx, data, mediaType)
}
