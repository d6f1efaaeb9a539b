package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/internal/cache"
	"github.com/kudibooks/kudibooks/internal/config"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	"github.com/kudibooks/kudibooks/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	GenID  *snowflake.Node
	Policy *config.TaxPolicyHolder
	Cache  cache.SettingsCache `optional:"true"`
}

type repository struct {
	db     *gorm.DB
	genID  *snowflake.Node
	policy *config.TaxPolicyHolder
	cache  cache.SettingsCache
}

func NewRepository(p Params) payrolldomain.Repository {
	return &repository{db: p.DB, genID: p.GenID, policy: p.Policy, cache: p.Cache}
}

// GetOrCreate returns the company's profile, lazily persisting the
// default profile from the active tax policy on first read. A lost
// insert race falls back to re-reading the winner's row.
func (r *repository) GetOrCreate(ctx context.Context, companyID snowflake.ID) (*payrolldomain.TaxSettingsProfile, error) {
	if companyID == 0 {
		return nil, payrolldomain.ErrInvalidCompany
	}

	if r.cache != nil {
		if cached, ok := r.cache.GetSettings(companyID); ok {
			return cached, nil
		}
	}

	profile, err := r.find(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		r.cacheSettings(profile)
		return profile, nil
	}

	defaults := r.defaultProfile(companyID)
	if err := r.db.WithContext(ctx).Create(defaults).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return r.mustFind(ctx, companyID)
		}
		return nil, err
	}
	r.cacheSettings(defaults)
	return defaults, nil
}

func (r *repository) cacheSettings(profile *payrolldomain.TaxSettingsProfile) {
	if r.cache != nil {
		r.cache.SetSettings(profile.CompanyID, profile)
	}
}

func (r *repository) Update(ctx context.Context, profile *payrolldomain.TaxSettingsProfile) error {
	if profile.CompanyID == 0 {
		return payrolldomain.ErrInvalidCompany
	}
	profile.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Exec(
		`UPDATE tax_settings_profiles
		 SET mode = ?, custom_percent = ?, pension_employee_rate = ?,
			 pension_employer_rate = ?, nhf_rate = ?, nhis_employee_rate = ?,
			 nhis_employer_rate = ?, nsitf_rate = ?, cra_relief_percent = ?,
			 fixed_annual_relief = ?, updated_at = ?
		 WHERE company_id = ?`,
		string(profile.Mode),
		profile.CustomPercent,
		profile.PensionEmployeeRate,
		profile.PensionEmployerRate,
		profile.NHFRate,
		profile.NHISEmployeeRate,
		profile.NHISEmployerRate,
		profile.NSITFRate,
		profile.CRAReliefPercent,
		profile.FixedAnnualRelief,
		profile.UpdatedAt,
		profile.CompanyID,
	).Error
	if err != nil {
		return err
	}
	// Write-through only after the row is committed. Invalidating up
	// front leaves a window where a concurrent read re-caches the old
	// profile and the stale entry outlives the update.
	r.cacheSettings(profile)
	return nil
}

func (r *repository) find(ctx context.Context, companyID snowflake.ID) (*payrolldomain.TaxSettingsProfile, error) {
	var profile payrolldomain.TaxSettingsProfile
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) mustFind(ctx context.Context, companyID snowflake.ID) (*payrolldomain.TaxSettingsProfile, error) {
	profile, err := r.find(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return profile, nil
}

func (r *repository) defaultProfile(companyID snowflake.ID) *payrolldomain.TaxSettingsProfile {
	policy := r.policy.Get()
	now := time.Now().UTC()
	return &payrolldomain.TaxSettingsProfile{
		ID:                  r.genID.Generate(),
		CompanyID:           companyID,
		Mode:                payrolldomain.ModeStandardPAYE,
		CustomPercent:       decimal.Zero,
		PensionEmployeeRate: decimal.NewFromFloat(8),
		PensionEmployerRate: decimal.NewFromFloat(10),
		NHFRate:             decimal.NewFromFloat(policy.DefaultNHFPercent),
		NHISEmployeeRate:    decimal.NewFromFloat(policy.DefaultNHISEmployeePercent),
		NHISEmployerRate:    decimal.NewFromFloat(policy.DefaultNHISEmployerPercent),
		NSITFRate:           decimal.NewFromFloat(1),
		CRAReliefPercent:    decimal.NewFromFloat(policy.DefaultCRAReliefPercent),
		FixedAnnualRelief:   decimal.NewFromInt(policy.DefaultFixedAnnualRelief),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
