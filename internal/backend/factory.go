package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finanzas/internal/store"
	"finanzas/internal/store/csvfile"
	gstore "finanzas/internal/store/google"
	"finanzas/internal/store/memory"
	"finanzas/internal/store/sqlite"

	goption "google.golang.org/api/option"
)

// DefaultFactory opens the real backends.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res = f.createMemory(config)
	case CSVBackend:
		res, err = f.createCSV(config)
	case SQLiteBackend:
		res, err = f.createSQLite(config)
	case SheetsBackend:
		res, err = f.createSheets(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	if res.Runs == nil {
		res.Runs, err = f.runLog(config)
		if err != nil {
			_ = res.Close()
			return nil, err
		}
	}
	return res, nil
}

func (f *DefaultFactory) createMemory(config Config) *Result {
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	st := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return &Result{Store: st, Runs: st}
}

func (f *DefaultFactory) createCSV(config Config) (*Result, error) {
	st, err := csvfile.New(config.DataDir, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CSV backend: %w", err)
	}
	f.logger.Info("Initialized CSV backend", "data_directory", config.DataDir)
	return &Result{Store: st, Runs: st}, nil
}

func (f *DefaultFactory) createSQLite(config Config) (*Result, error) {
	st, err := sqlite.Open(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Store: st, Runs: st, Cleanup: st.Close}, nil
}

func (f *DefaultFactory) createSheets(ctx context.Context, config Config) (*Result, error) {
	opts, err := f.sheetsCredentials(ctx, config)
	if err != nil {
		return nil, err
	}
	st, err := gstore.New(ctx, gstore.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		CacheTTL:      config.SheetsCacheTTL,
	}, f.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets backend: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &Result{Store: st}, nil
}

func (f *DefaultFactory) sheetsCredentials(ctx context.Context, config Config) ([]goption.ClientOption, error) {
	if config.GoogleOAuthTokenFile != "" {
		f.logger.Info("Using OAuth user credentials", "token_file", config.GoogleOAuthTokenFile)
		return gstore.OAuthOption(ctx, config.GoogleOAuthClientJSON, config.GoogleOAuthClientFile, config.GoogleOAuthTokenFile)
	}
	return gstore.CredentialsOption(ctx, config.GoogleServiceAccountJSON, config.GoogleServiceAccountFile)
}

// runLog keeps recurring runs in a CSV file under DataDir for backends
// that have nowhere to put them.
func (f *DefaultFactory) runLog(config Config) (store.RunRecorder, error) {
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	runs, err := csvfile.New(dataDir, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	return runs, nil
}
