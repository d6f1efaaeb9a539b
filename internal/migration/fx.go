package migration

import (
	auditdomain "github.com/kudibooks/kudibooks/internal/audit/domain"
	"github.com/kudibooks/kudibooks/internal/config"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	ledgerdomain "github.com/kudibooks/kudibooks/internal/ledger/domain"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	referencedomain "github.com/kudibooks/kudibooks/internal/reference/domain"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Versioned SQL targets postgres; other drivers are for
		// local development and tests, where automigrate suffices.
		if err := conn.AutoMigrate(
			&ledgerdomain.LedgerEntry{},
			&saledomain.Sale{},
			&saledomain.Product{},
			&expensedomain.Expense{},
			&payrolldomain.TaxSettingsProfile{},
			&taxledgerdomain.TaxLedgerRecord{},
			&taxledgerdomain.TaxLedgerSourceRef{},
			&auditdomain.AuditLog{},
			&referencedomain.WHTRate{},
			&referencedomain.State{},
		); err != nil {
			return err
		}
		return seedReferenceData(conn)
	}),
)

// seedReferenceData mirrors the reference rows the versioned SQL seeds
// on postgres.
func seedReferenceData(conn *gorm.DB) error {
	whtRates := []referencedomain.WHTRate{
		{Code: "dividends", Description: "Dividends", Corporate: pct(10), Individual: pct(10)},
		{Code: "interest", Description: "Interest", Corporate: pct(10), Individual: pct(10)},
		{Code: "rent", Description: "Rent (including hire of equipment)", Corporate: pct(10), Individual: pct(10)},
		{Code: "royalties", Description: "Royalties", Corporate: pct(10), Individual: pct(5)},
		{Code: "construction", Description: "Building and construction contracts", Corporate: pct(5), Individual: pct(5)},
		{Code: "contracts", Description: "Contracts of supply and agency arrangements", Corporate: pct(5), Individual: pct(5)},
		{Code: "consultancy", Description: "Consultancy, professional and management services", Corporate: pct(10), Individual: pct(5)},
		{Code: "technical", Description: "Technical services", Corporate: pct(10), Individual: pct(5)},
		{Code: "commission", Description: "Commission", Corporate: pct(10), Individual: pct(5)},
		{Code: "directors_fees", Description: "Directors fees", Corporate: pct(10), Individual: pct(10)},
	}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&whtRates).Error; err != nil {
		return err
	}

	states := []referencedomain.State{
		{Code: "AB", Name: "Abia"}, {Code: "AD", Name: "Adamawa"},
		{Code: "AK", Name: "Akwa Ibom"}, {Code: "AN", Name: "Anambra"},
		{Code: "BA", Name: "Bauchi"}, {Code: "BY", Name: "Bayelsa"},
		{Code: "BE", Name: "Benue"}, {Code: "BO", Name: "Borno"},
		{Code: "CR", Name: "Cross River"}, {Code: "DE", Name: "Delta"},
		{Code: "EB", Name: "Ebonyi"}, {Code: "ED", Name: "Edo"},
		{Code: "EK", Name: "Ekiti"}, {Code: "EN", Name: "Enugu"},
		{Code: "FC", Name: "Federal Capital Territory"},
		{Code: "GO", Name: "Gombe"}, {Code: "IM", Name: "Imo"},
		{Code: "JI", Name: "Jigawa"}, {Code: "KD", Name: "Kaduna"},
		{Code: "KN", Name: "Kano"}, {Code: "KT", Name: "Katsina"},
		{Code: "KE", Name: "Kebbi"}, {Code: "KO", Name: "Kogi"},
		{Code: "KW", Name: "Kwara"}, {Code: "LA", Name: "Lagos"},
		{Code: "NA", Name: "Nasarawa"}, {Code: "NI", Name: "Niger"},
		{Code: "OG", Name: "Ogun"}, {Code: "ON", Name: "Ondo"},
		{Code: "OS", Name: "Osun"}, {Code: "OY", Name: "Oyo"},
		{Code: "PL", Name: "Plateau"}, {Code: "RI", Name: "Rivers"},
		{Code: "SO", Name: "Sokoto"}, {Code: "TA", Name: "Taraba"},
		{Code: "YO", Name: "Yobe"}, {Code: "ZA", Name: "Zamfara"},
	}
	return conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&states).Error
}

func pct(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
