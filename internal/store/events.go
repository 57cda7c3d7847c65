package store

import "context"

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var n int
	err := s.Get(ctx, &n, "SELECT COUNT(*) FROM processed_events WHERE event_id = ?", eventID)
	return n > 0, err
}

// MarkEventProcessed records an event id; recording it twice is harmless
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.Execute(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES (?, ?) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
