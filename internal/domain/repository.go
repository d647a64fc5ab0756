package domain

import "context"

// RunRepository persists the ingestion run ledger.
// Implemented by repository.RunRepo.
type RunRepository interface {
	StartRun(ctx context.Context, trigger string) (*IngestionRun, error)
	RecordFile(ctx context.Context, runID string, r FileResult) error
	FinishRun(ctx context.Context, runID string, report *Report, runErr error) (*IngestionRun, error)
	ListRuns(ctx context.Context, page PageRequest) ([]IngestionRun, int64, error)
	GetRun(ctx context.Context, runID string) (*IngestionRun, error)
	ListFiles(ctx context.Context, runID string) ([]FileResult, error)
}
