package order

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CleanupCredentialArtifacts removes rendered credential images older
// than the retention window. An artifact whose order is still PENDING or
// CONFIRMED is never removed regardless of age; orphaned artifacts with
// no surviving order are removed once past retention. Returns the number
// of files removed.
func (s *OrderService) CleanupCredentialArtifacts(ctx context.Context, retention time.Duration) (int, error) {
	artifacts, err := s.Codec.ListArtifacts()
	if err != nil {
		return 0, fmt.Errorf("failed to list credential artifacts: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	removed := 0

	for _, artifact := range artifacts {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if artifact.ModTime.After(cutoff) {
			continue
		}

		order, err := s.DB.GetOrderByCode(ctx, artifact.OrderCode)
		switch {
		case err == nil:
			if !order.Status.IsTerminal() {
				continue
			}
		case errors.Is(err, ErrNotFound):
			// orphan, order was hard-deleted
		default:
			s.Logger.Warn("SWEEP", fmt.Sprintf("skipping %s, lookup failed: %v", artifact.Filename, err))
			continue
		}

		if err := s.Codec.Remove(artifact.Filename); err != nil {
			s.Logger.Warn("SWEEP", fmt.Sprintf("failed to remove %s: %v", artifact.Filename, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.Logger.Info("SWEEP", fmt.Sprintf("removed %d expired credential artifacts", removed))
	}
	return removed, nil
}

// StartArtifactSweep runs the cleanup on a fixed interval until the
// context is cancelled. The sweep shares no locks with request handling.
func (s *OrderService) StartArtifactSweep(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.CleanupCredentialArtifacts(ctx, retention); err != nil && !errors.Is(err, context.Canceled) {
					s.Logger.Error("SWEEP", fmt.Sprintf("artifact sweep failed: %v", err))
				}
			}
		}
	}()
}
