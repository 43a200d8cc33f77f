package aws

import (
	"context"
	stderrors "errors"
)

// Notifier delivers a review alert and returns a delivery id.
type Notifier interface {
	Notify(ctx context.Context, alert ReviewAlert) (string, error)
}

// Fanout sends to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, alert ReviewAlert) (string, error) {
	var (
		firstID string
		errs    []error
	)
	for _, n := range f {
		id, err := n.Notify(ctx, alert)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if firstID == "" {
			firstID = id
		}
	}
	return firstID, stderrors.Join(errs...)
}
