package explain

import "context"

// Generator produces one completion from a system and a user message.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}
