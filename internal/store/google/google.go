// Package google is the Google Sheets backend. Each collection lives in
// its own tab with a header row; saves clear the tab and rewrite it.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/store"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	TemplatesSheet    string
	CategoriesSheet   string
	BudgetsSheet      string
	CacheTTL          time.Duration
}

func (c *Config) applyDefaults() {
	if c.TransactionsSheet == "" {
		c.TransactionsSheet = "Finanzas"
	}
	if c.TemplatesSheet == "" {
		c.TemplatesSheet = "Plantillas"
	}
	if c.CategoriesSheet == "" {
		c.CategoriesSheet = "Categorias"
	}
	if c.BudgetsSheet == "" {
		c.BudgetsSheet = "Presupuestos"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
}

type Store struct {
	svc    *gsheet.Service
	cfg    Config
	reads  *cache.LRUCache[[][]string]
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New builds a store on top of an already configured client option set.
// Tests pass an endpoint and no credentials; production passes
// CredentialsOption.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...goption.ClientOption) (*Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	cfg.applyDefaults()
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		svc:    svc,
		cfg:    cfg,
		reads:  cache.NewLRUCache[[][]string](8, cfg.CacheTTL),
		logger: logger.With("component", "sheets"),
	}, nil
}

// CredentialsOption resolves service account credentials from inline
// JSON, a file path, or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func CredentialsOption(ctx context.Context, inlineJSON, file string) ([]goption.ClientOption, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	if inlineJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(inlineJSON)
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, schema, err := s.read(ctx, s.cfg.TransactionsSheet, "I", store.TransactionHeader, store.ColDate, store.ColAmount)
	if err != nil || rows == nil {
		return nil, err
	}
	txs, errs := store.DecodeTransactions(rows, schema, 2)
	store.LogDropped(ctx, s.logger, s.cfg.TransactionsSheet, errs)
	return txs, nil
}

func (s *Store) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, store.EncodeTransaction(tx))
	}
	return s.write(ctx, s.cfg.TransactionsSheet, "I", store.TransactionHeader, rows)
}

func (s *Store) LoadTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	rows, schema, err := s.read(ctx, s.cfg.TemplatesSheet, "G", store.TemplateHeader, store.ColAmount)
	if err != nil || rows == nil {
		return nil, err
	}
	tpls, errs := store.DecodeTemplates(rows, schema, 2)
	store.LogDropped(ctx, s.logger, s.cfg.TemplatesSheet, errs)
	return tpls, nil
}

func (s *Store) SaveTemplates(ctx context.Context, templates []core.RecurringTemplate) error {
	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, store.EncodeTemplate(t))
	}
	return s.write(ctx, s.cfg.TemplatesSheet, "G", store.TemplateHeader, rows)
}

func (s *Store) LoadCategories(ctx context.Context) ([]string, error) {
	rows, _, err := s.read(ctx, s.cfg.CategoriesSheet, "A", store.CategoryHeader, store.ColCategory)
	if err != nil || rows == nil {
		return nil, err
	}
	return store.DecodeCategories(rows), nil
}

func (s *Store) SaveCategories(ctx context.Context, cats []string) error {
	cats = core.NormalizeCategories(cats)
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c})
	}
	return s.write(ctx, s.cfg.CategoriesSheet, "A", store.CategoryHeader, rows)
}

func (s *Store) LoadBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, schema, err := s.read(ctx, s.cfg.BudgetsSheet, "B", store.BudgetHeader, store.ColCategory, store.ColLimit)
	if err != nil || rows == nil {
		return nil, err
	}
	budgets, errs := store.DecodeBudgets(rows, schema, 2)
	store.LogDropped(ctx, s.logger, s.cfg.BudgetsSheet, errs)
	return budgets, nil
}

func (s *Store) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	rows := make([][]string, 0, len(budgets))
	for _, b := range budgets {
		rows = append(rows, store.EncodeBudget(b))
	}
	return s.write(ctx, s.cfg.BudgetsSheet, "B", store.BudgetHeader, rows)
}

// read fetches sheet!A1:<lastCol>. A tab that does not exist loads empty.
func (s *Store) read(ctx context.Context, sheet, lastCol string, fallback []string, required ...string) ([][]string, store.Schema, error) {
	rng := fmt.Sprintf("%s!A1:%s", sheet, lastCol)

	rows, ok := s.reads.Get(rng)
	if !ok {
		resp, err := s.svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			if isMissingRange(err) {
				s.logger.WarnContext(ctx, "Sheet not found, treating as empty", "range", rng)
				return nil, nil, nil
			}
			return nil, nil, fmt.Errorf("read %s: %w", rng, err)
		}
		rows = store.FromCells(resp.Values)
		s.reads.Set(rng, rows)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	if schema, ok := store.DetectSchema(rows[0], required...); ok {
		return rows[1:], schema, nil
	}
	return rows, store.SchemaFor(fallback), nil
}

func (s *Store) write(ctx context.Context, sheet, lastCol string, header []string, rows [][]string) error {
	full := fmt.Sprintf("%s!A:%s", sheet, lastCol)
	s.reads.Delete(fmt.Sprintf("%s!A1:%s", sheet, lastCol))

	if _, err := s.svc.Spreadsheets.Values.Clear(s.cfg.SpreadsheetID, full, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", full, err)
	}

	values := append([][]string{header}, rows...)
	body := &gsheet.ValueRange{Values: store.ToCells(values)}
	target := fmt.Sprintf("%s!A1:%s%d", sheet, lastCol, len(values))
	_, err := s.svc.Spreadsheets.Values.Update(s.cfg.SpreadsheetID, target, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", target, err)
	}
	s.logger.InfoContext(ctx, "Sheet rewritten", "range", target, "rows", len(rows))
	return nil
}

func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound ||
		(gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range"))
}
