package collector

import (
	"context"

	"FinVision/internal/model"
)

// Fetcher defines the interface for fetching live data for a standard asset.
type Fetcher interface {
	FetchAsset(ctx context.Context, id model.AssetID) (*model.AssetSnapshot, error)
	Name() string
}

// ChartAnalyzer digitizes an uploaded chart image into a snapshot.
type ChartAnalyzer interface {
	AnalyzeChart(ctx context.Context, image []byte, mimeType string) (*model.AssetSnapshot, error)
}
