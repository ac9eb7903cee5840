package store

import "context"

const abortFlagName = "abort_flag"

// SetAbortFlag raises the global abort flag. The flag has no expiry; only
// an explicit reset clears it.
func (s *Store) SetAbortFlag(ctx context.Context) error {
	return s.SetSingleton(ctx, abortFlagName, "1", 0)
}

// AbortFlag reports whether the global abort flag is set.
func (s *Store) AbortFlag(ctx context.Context) (bool, error) {
	_, ok, err := s.GetSingleton(ctx, abortFlagName)
	return ok, err
}

// ClearAbortFlag lowers the global abort flag.
func (s *Store) ClearAbortFlag(ctx context.Context) error {
	return s.DeleteSingleton(ctx, abortFlagName)
}
