package alerts

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kurtesianplane/andarTayo-sub000/downloader"
	"github.com/kurtesianplane/andarTayo-sub000/model"
	"github.com/kurtesianplane/andarTayo-sub000/parse"
)

// Reads alerts from a JSON file.
func LoadFile(path string) ([]model.Alert, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alerts: %w", err)
	}

	alerts, err := parse.ParseAlerts(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return alerts, nil
}

// Fetches service alerts from GTFS Realtime feeds.
func FetchFeeds(
	ctx context.Context,
	d downloader.Downloader,
	urls []string,
	headers map[string]string,
	options downloader.GetOptions,
) ([]model.Alert, error) {
	feeds := make([][]byte, 0, len(urls))
	for _, url := range urls {
		body, err := d.Get(ctx, url, headers, options)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, err)
		}
		feeds = append(feeds, body)
	}

	alerts, err := parse.ParseRealtimeAlerts(feeds)
	if err != nil {
		return nil, fmt.Errorf("parsing alert feeds: %w", err)
	}

	log.Debug().Int("feeds", len(feeds)).Int("alerts", len(alerts)).Msg("fetched alert feeds")

	return alerts, nil
}

// Keeps only alerts for the given line, or for no line in
// particular.
func ForLine(alerts []model.Alert, lineID string) []model.Alert {
	filtered := []model.Alert{}
	for _, a := range alerts {
		if a.LineID == "" || a.LineID == lineID {
			filtered = append(filtered, a)
		}
	}
	return filtered
}
