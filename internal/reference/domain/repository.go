package domain

import "context"

type Repository interface {
	ListWHTRates(ctx context.Context) ([]WHTRate, error)
	ListStates(ctx context.Context) ([]State, error)
}
