package history

import "context"

// ExecForTest runs raw SQL against the store.
func ExecForTest(s *Store, query string) error {
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}
