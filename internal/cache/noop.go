package cache

import "context"

// Noop is the invalidator used when Redis is not configured. Every call
// succeeds without doing anything.
type Noop struct{}

var _ Invalidator = Noop{}

func (Noop) Invalidate(context.Context, string) error        { return nil }
func (Noop) InvalidatePattern(context.Context, string) error { return nil }
func (Noop) Close() error                                    { return nil }
