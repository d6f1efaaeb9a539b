package reference

import (
	"context"

	"github.com/kudibooks/kudibooks/internal/reference/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) ListWHTRates(ctx context.Context) ([]domain.WHTRate, error) {
	var rates []domain.WHTRate
	err := r.db.WithContext(ctx).
		Raw(`SELECT code, description, corporate_percent, individual_percent FROM wht_rates ORDER BY code`).
		Scan(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *repository) ListStates(ctx context.Context) ([]domain.State, error) {
	var states []domain.State
	err := r.db.WithContext(ctx).
		Raw(`SELECT code, name FROM states ORDER BY name`).
		Scan(&states).Error
	if err != nil {
		return nil, err
	}
	return states, nil
}
