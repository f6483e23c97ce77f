// Package storage holds the sinks that history scans and CLI results are
// written to.
package storage

import (
	"context"
	"errors"

	"vaultScope/internal/model"
)

// EventSink receives decoded vault events batch by batch.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.VaultEvent) error
}

// MultiSink fans one batch out to several sinks in order. A nil entry is
// skipped so optional sinks can be passed straight through.
type MultiSink []EventSink

// PutEvents writes the batch to every sink and joins their errors.
func (m MultiSink) PutEvents(ctx context.Context, events []model.VaultEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
