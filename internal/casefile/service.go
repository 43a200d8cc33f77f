// Package casefile assembles case evidence, runs the income and means test
// computations over it and persists the outcome.
package casefile

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bankruptcy-workers/internal/common/aws"
	"bankruptcy-workers/internal/common/caselock"
	"bankruptcy-workers/internal/common/config"
	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/logger"
	"bankruptcy-workers/internal/common/observability"
	"bankruptcy-workers/internal/income"
	"bankruptcy-workers/internal/meanstest"
	"bankruptcy-workers/internal/models"
	"bankruptcy-workers/internal/repository"
)

// Store is the case storage the service reads and writes.
type Store interface {
	SaveRawExtraction(ctx context.Context, e repository.StoredExtraction) (bool, error)
	ListRawExtractions(ctx context.Context, caseID string) ([]repository.StoredExtraction, error)
	MarkDocument(ctx context.Context, caseID, documentID, status, errorCode, detail string) error
	ListUnavailableDocuments(ctx context.Context, caseID string) ([]string, error)
	ListManualRecords(ctx context.Context, caseID string) ([]models.ManualIncomeRecord, error)
	ListOverrides(ctx context.Context, caseID string) ([]models.IncomeOverride, error)
	ReplaceReconciledSources(ctx context.Context, caseID string, sources []models.ReconciledIncomeSource, summary models.IncomeSummary) error
	ListReconciledSources(ctx context.Context, caseID string) ([]models.ReconciledIncomeSource, error)
	GetIncomeSummary(ctx context.Context, caseID string) (models.IncomeSummary, error)
	GetCaseFinancials(ctx context.Context, caseID string) (models.CaseFinancials, error)
}

// Fetcher retrieves the extractions of one document from the
// document-understanding service.
type Fetcher interface {
	FetchExtractions(ctx context.Context, documentID string) ([]json.RawMessage, error)
}

type Deps struct {
	Store   Store
	Fetcher Fetcher
	Locker  *caselock.Locker
	// Notifier may be nil, in which case review alerts are not sent.
	Notifier aws.Notifier
	Obs      *observability.Observability
}

type Options struct {
	Params         income.Params
	Tables         *meanstest.Tables
	MaxConcurrency int
	Now            func() time.Time
}

type Service struct {
	store    Store
	fetcher  Fetcher
	locker   *caselock.Locker
	notifier aws.Notifier
	obs      *observability.Observability
	parser   *income.Parser
	opts     Options
	log      logger.Logger
}

func New(deps Deps, opts Options, log logger.Logger) (*Service, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, errors.NewInvalidRequestError("reconciliation parameters: " + err.Error())
	}
	if opts.Tables == nil {
		tables, err := meanstest.DefaultTables()
		if err != nil {
			return nil, err
		}
		opts.Tables = tables
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	parser, err := income.NewParser()
	if err != nil {
		return nil, err
	}

	return &Service{
		store:    deps.Store,
		fetcher:  deps.Fetcher,
		locker:   deps.Locker,
		notifier: deps.Notifier,
		obs:      deps.Obs,
		parser:   parser,
		opts:     opts,
		log:      log.WithFields(map[string]interface{}{"component": "casefile"}),
	}, nil
}

// ParamsFromConfig overlays the configured reconciliation values on the
// defaults. Zero values keep the default.
func ParamsFromConfig(cfg config.ReconciliationConfig) (income.Params, error) {
	p := income.DefaultParams()
	if cfg.ReviewThreshold > 0 {
		p.ReviewThreshold = cfg.ReviewThreshold
	}
	if cfg.DiscrepancyTolerance > 0 {
		p.DiscrepancyTolerance = cfg.DiscrepancyTolerance
	}
	if cfg.NetOnlyPenalty > 0 {
		p.NetOnlyPenalty = cfg.NetOnlyPenalty
	}
	if cfg.ManualRecordConfidence > 0 {
		p.ManualRecordConfidence = cfg.ManualRecordConfidence
	}
	for docType, w := range cfg.ReliabilityWeights {
		p.ReliabilityWeights[models.DocumentType(docType)] = w
	}
	if err := p.Validate(); err != nil {
		return income.Params{}, errors.NewInvalidRequestError("reconciliation config: " + err.Error())
	}
	return p, nil
}

// TablesFromConfig loads the statutory tables and applies the configured
// floor, if any.
func TablesFromConfig(cfg config.MeansTestConfig) (*meanstest.Tables, error) {
	tables, err := meanstest.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.StatutoryFloor) == "" {
		return tables, nil
	}
	floor, err := decimal.NewFromString(strings.TrimSpace(cfg.StatutoryFloor))
	if err != nil || floor.IsNegative() {
		return nil, errors.NewStatutoryTablesInvalidError("means_test.statutory_floor must be a non-negative amount")
	}
	return tables.WithStatutoryFloor(floor), nil
}

func requireCaseID(caseID string) (string, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return "", errors.NewCaseContextMissingError("caseId is required")
	}
	return caseID, nil
}

// IncomeSummary returns the persisted reconciliation result for a case.
func (s *Service) IncomeSummary(ctx context.Context, caseID string) (models.IncomeSummary, error) {
	caseID, err := requireCaseID(caseID)
	if err != nil {
		return models.IncomeSummary{}, err
	}
	return s.store.GetIncomeSummary(ctx, caseID)
}

// Tables exposes the statutory tables in use.
func (s *Service) Tables() *meanstest.Tables {
	return s.opts.Tables
}
