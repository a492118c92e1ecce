package sale

import "context"

// Store persists the single sale state record.
type Store interface {
	SaveState(ctx context.Context, s *State) error
	LoadState(ctx context.Context) (*State, error)
}
