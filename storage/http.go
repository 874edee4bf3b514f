package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kurtesianplane/andarTayo-sub000/downloader"
	"github.com/kurtesianplane/andarTayo-sub000/model"
)

const (
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultHTTPCacheTTL = 10 * time.Minute
	DefaultHTTPMaxSize  = 8 << 20
)

// Fetches datasets from a static file host using the same layout as
// FSStorage: <BaseURL>/<key>/<kind>.json, falling back to .csv on
// 404.
type HTTPStorage struct {
	BaseURL    string
	Headers    map[string]string
	Downloader downloader.Downloader
	Options    downloader.GetOptions
}

func NewHTTPStorage(baseURL string, d downloader.Downloader) *HTTPStorage {
	if d == nil {
		d = downloader.NewMemoryDownloader()
	}
	return &HTTPStorage{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Headers:    map[string]string{},
		Downloader: d,
		Options: downloader.GetOptions{
			MaxSize:  DefaultHTTPMaxSize,
			Timeout:  DefaultHTTPTimeout,
			Cache:    true,
			CacheTTL: DefaultHTTPCacheTTL,
		},
	}
}

func (s *HTTPStorage) ReadDataset(ctx context.Context, key string, kind model.DatasetKind) (*model.Dataset, error) {
	for _, format := range datasetFormats {
		url := fmt.Sprintf("%s/%s/%s.%s", s.BaseURL, key, kind, format)

		data, err := s.Downloader.Get(ctx, url, s.Headers, s.Options)
		if downloader.IsStatus(err, http.StatusNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", url, err)
		}

		return &model.Dataset{
			Key:       key,
			Kind:      kind,
			Format:    format,
			Data:      data,
			UpdatedAt: time.Now().UTC(),
		}, nil
	}

	return nil, fmt.Errorf("%s/%s: %w", key, kind, ErrDatasetNotFound)
}
