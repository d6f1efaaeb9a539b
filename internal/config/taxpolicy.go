package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TaxBand is one marginal PAYE band. Limit is the annual amount the band
// consumes; 0 means unbounded (final band). RatePercent is the marginal
// rate applied to the portion falling in the band.
type TaxBand struct {
	Limit       int64   `mapstructure:"limit"`
	RatePercent float64 `mapstructure:"ratePercent"`
}

// TurnoverBand is one CIT rate step. UpTo is the inclusive turnover
// ceiling; 0 means unbounded (final step).
type TurnoverBand struct {
	UpTo        int64   `mapstructure:"upTo"`
	RatePercent float64 `mapstructure:"ratePercent"`
}

// TaxPolicy carries the statutory tables and default rates used by the
// payroll and company tax engines. Values reflect the Finance Act
// schedules in force; the file under /etc/kudibooks can override them
// without a redeploy.
type TaxPolicy struct {
	// PAYEBands is the ANNUAL progressive schedule. Monthly inputs are
	// annualized before banding and the result divided back by 12.
	PAYEBands []TaxBand `mapstructure:"payeBands"`

	VATRatePercent float64 `mapstructure:"vatRatePercent"`
	TETRatePercent float64 `mapstructure:"tetRatePercent"`

	CITTurnoverBands []TurnoverBand `mapstructure:"citTurnoverBands"`

	// Payroll defaults applied when a company has no settings profile.
	DefaultNHFPercent          float64 `mapstructure:"defaultNhfPercent"`
	DefaultNHISEmployeePercent float64 `mapstructure:"defaultNhisEmployeePercent"`
	DefaultNHISEmployerPercent float64 `mapstructure:"defaultNhisEmployerPercent"`
	DefaultCRAReliefPercent    float64 `mapstructure:"defaultCraReliefPercent"`
	DefaultFixedAnnualRelief   int64   `mapstructure:"defaultFixedAnnualRelief"`

	TaxLawVersion string `mapstructure:"taxLawVersion"`
}

// DefaultTaxPolicy returns the built-in schedule used when no policy
// file is mounted.
func DefaultTaxPolicy() TaxPolicy {
	return TaxPolicy{
		PAYEBands: []TaxBand{
			{Limit: 300_000, RatePercent: 7},
			{Limit: 300_000, RatePercent: 11},
			{Limit: 500_000, RatePercent: 15},
			{Limit: 500_000, RatePercent: 19},
			{Limit: 1_600_000, RatePercent: 21},
			{Limit: 0, RatePercent: 24},
		},
		VATRatePercent: 7.5,
		TETRatePercent: 2.5,
		CITTurnoverBands: []TurnoverBand{
			{UpTo: 25_000_000, RatePercent: 0},
			{UpTo: 100_000_000, RatePercent: 20},
			{UpTo: 0, RatePercent: 30},
		},
		DefaultNHFPercent:          2.5,
		DefaultNHISEmployeePercent: 5,
		DefaultNHISEmployerPercent: 10,
		DefaultCRAReliefPercent:    20,
		DefaultFixedAnnualRelief:   200_000,
		TaxLawVersion:              "FA2023",
	}
}

// TaxPolicyHolder exposes the active policy with hot reload.
type TaxPolicyHolder struct {
	current atomic.Value // holds TaxPolicy
}

// NewTaxPolicyHolder loads the tax policy file and watches it for changes.
func NewTaxPolicyHolder() (*TaxPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("taxpolicy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/kudibooks/config")
	v.AddConfigPath("/etc/kudibooks")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KUDIBOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &TaxPolicyHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultTaxPolicy())
		return holder, nil
	}

	var policy TaxPolicy
	if err := v.UnmarshalKey("tax", &policy); err != nil {
		return nil, err
	}
	if err := validateTaxPolicy(policy); err != nil {
		return nil, err
	}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated TaxPolicy
		if err := v.UnmarshalKey("tax", &updated); err != nil {
			log.Printf("[tax-policy] reload failed: %v", err)
			return
		}
		if err := validateTaxPolicy(updated); err != nil {
			log.Printf("[tax-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[tax-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *TaxPolicyHolder) Get() TaxPolicy {
	return h.current.Load().(TaxPolicy)
}

// StaticTaxPolicyHolder wraps a fixed policy with no file watching.
func StaticTaxPolicyHolder(p TaxPolicy) *TaxPolicyHolder {
	holder := &TaxPolicyHolder{}
	holder.current.Store(p)
	return holder
}

func validateTaxPolicy(p TaxPolicy) error {
	if len(p.PAYEBands) == 0 {
		return errors.New("tax.payeBands cannot be empty")
	}
	if p.PAYEBands[len(p.PAYEBands)-1].Limit != 0 {
		return errors.New("tax.payeBands final band must be unbounded")
	}
	for _, b := range p.PAYEBands[:len(p.PAYEBands)-1] {
		if b.Limit <= 0 {
			return errors.New("tax.payeBands limits must be positive")
		}
	}
	if len(p.CITTurnoverBands) == 0 {
		return errors.New("tax.citTurnoverBands cannot be empty")
	}
	if p.CITTurnoverBands[len(p.CITTurnoverBands)-1].UpTo != 0 {
		return errors.New("tax.citTurnoverBands final band must be unbounded")
	}
	return nil
}
