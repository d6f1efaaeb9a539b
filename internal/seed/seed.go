package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/internal/config"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module seeds the default company in development so a fresh checkout
// has something to post against.
var Module = fx.Module("seed",
	fx.Invoke(run),
)

func run(cfg config.Config, db *gorm.DB, genID *snowflake.Node, settings payrolldomain.Repository, log *zap.Logger) error {
	if cfg.Environment != "development" || cfg.DefaultCompanyID == 0 {
		return nil
	}
	if err := EnsureDemoCompany(db, genID, settings, snowflake.ID(cfg.DefaultCompanyID)); err != nil {
		return err
	}
	log.Named("seed").Info("seeded development company",
		zap.Int64("company_id", cfg.DefaultCompanyID))
	return nil
}

// EnsureDemoCompany seeds a settings profile and a small product
// catalog for the company. Existing rows are left untouched, so the
// seed is safe to run on every startup.
func EnsureDemoCompany(db *gorm.DB, genID *snowflake.Node, settings payrolldomain.Repository, companyID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if companyID == 0 {
		return errors.New("seed company id is required")
	}

	ctx := context.Background()
	if _, err := settings.GetOrCreate(ctx, companyID); err != nil {
		return err
	}
	return ensureProducts(ctx, db, genID, companyID)
}

func ensureProducts(ctx context.Context, db *gorm.DB, genID *snowflake.Node, companyID snowflake.ID) error {
	var count int64
	if err := db.WithContext(ctx).
		Model(&saledomain.Product{}).
		Where("company_id = ?", companyID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	products := []saledomain.Product{
		{Name: "Consulting hour", CostPrice: decimal.Zero, SellingPrice: decimal.NewFromInt(25000)},
		{Name: "Starter kit", CostPrice: decimal.NewFromInt(12000), SellingPrice: decimal.NewFromInt(20000)},
	}
	for i := range products {
		products[i].ID = genID.Generate()
		products[i].CompanyID = companyID
		products[i].CreatedAt = now
	}
	return db.WithContext(ctx).Create(&products).Error
}
