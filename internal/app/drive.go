package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/kpisync/internal/adapters/cache"
	"github.com/okian/kpisync/internal/adapters/graph"
	"github.com/okian/kpisync/internal/config"
	"github.com/okian/kpisync/pkg/logger"
)

// Drive is the document store a run reads and writes workbooks through.
type Drive interface {
	Resolve(ctx context.Context, path string) (string, error)
	// Forget drops any cached id for path.
	Forget(path string)
	Download(ctx context.Context, id string) ([]byte, error)
	Upload(ctx context.Context, path string, data []byte) (string, error)
	CreateFolder(ctx context.Context, path string) (string, error)
	SendMail(ctx context.Context, m graph.Mail) error
}

// DriveFactory opens a Drive for one run.
type DriveFactory func(ctx context.Context) (Drive, error)

// GraphDrives builds a fresh Graph client per run. The path cache is shared
// so ids survive across runs until their TTL.
func GraphDrives(cfg *config.Config, paths cache.PathCache, log logger.Logger) DriveFactory {
	return func(ctx context.Context) (Drive, error) {
		c, err := graph.New(ctx, graph.Credentials{
			TenantID:     cfg.TenantID,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			DriveID:      cfg.DriveID,
			TokenURL:     cfg.TokenURL,
		},
			graph.WithBaseURL(cfg.GraphBaseURL),
			graph.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
			graph.WithCache(paths),
			graph.WithLogger(log),
		)
		if errors.Is(err, graph.ErrMissingCredentials) {
			return nil, fmt.Errorf("%w: %w", ErrMissingCredentials, err)
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
