package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	journalsPosted    metric.Int64Counter
	taxUpserts        metric.Int64Counter
	payrollComputed   metric.Int64Counter
	remittancesMarked metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "kudibooks"
	}
	meter := provider.Meter(name)

	journalsPosted, err := meter.Int64Counter("kudibooks_journals_posted_total")
	if err != nil {
		return nil, err
	}
	taxUpserts, err := meter.Int64Counter("kudibooks_tax_upserts_total")
	if err != nil {
		return nil, err
	}
	payrollComputed, err := meter.Int64Counter("kudibooks_payroll_computed_total")
	if err != nil {
		return nil, err
	}
	remittancesMarked, err := meter.Int64Counter("kudibooks_remittances_marked_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		journalsPosted:    journalsPosted,
		taxUpserts:        taxUpserts,
		payrollComputed:   payrollComputed,
		remittancesMarked: remittancesMarked,
	}, nil
}

// RecordJournalPosted increments posted journal counts.
func (m *Metrics) RecordJournalPosted(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.journalsPosted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", strings.TrimSpace(source)),
	))
}

// RecordTaxUpsert increments tax ledger upsert counts.
func (m *Metrics) RecordTaxUpsert(ctx context.Context, taxType string) {
	if m == nil {
		return
	}
	m.taxUpserts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tax_type", strings.TrimSpace(taxType)),
	))
}

// RecordPayrollComputed increments payroll computation counts.
func (m *Metrics) RecordPayrollComputed(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.payrollComputed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", strings.TrimSpace(mode)),
	))
}

// RecordRemittanceMarked increments remittance marking counts.
func (m *Metrics) RecordRemittanceMarked(ctx context.Context, taxType string) {
	if m == nil {
		return
	}
	m.remittancesMarked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tax_type", strings.TrimSpace(taxType)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
