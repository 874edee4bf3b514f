package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Filesystem keeps downloaded datasets and alert feeds in a JSON file
// on disk, so restarts and outages of the dataset host don't leave
// the planner without data.
type Filesystem struct {
	Path string

	// If set, a cached copy is returned when fetching fails for any
	// reason other than a 404, however old the copy is.
	StaleOnError bool

	TimeNow func() time.Time

	// Defaults to HTTPGet. Replaced in tests.
	Fetch func(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)

	mutex   sync.Mutex
	records map[string]fsRecord
}

type fsRecord struct {
	Body        []byte    `json:"body"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Opens the cache file at path, creating it on first save.
func NewFilesystem(path string) (*Filesystem, error) {
	f := &Filesystem{
		Path:    path,
		TimeNow: time.Now,
		Fetch:   HTTPGet,
		records: map[string]fsRecord{},
	}

	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading download cache: %w", err)
	}
	if len(buf) > 0 {
		if err := json.Unmarshal(buf, &f.records); err != nil {
			return nil, fmt.Errorf("decoding download cache %s: %w", path, err)
		}
	}

	return f, nil
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	f.mutex.Lock()
	record, cached := f.records[url]
	f.mutex.Unlock()

	if options.Cache && cached && record.RetrievedAt.Add(options.CacheTTL).After(f.TimeNow()) {
		log.Debug().Str("url", url).Msg("download cache hit")
		return record.Body, nil
	}

	body, err := f.Fetch(ctx, url, headers, options)
	if err != nil {
		if f.StaleOnError && options.Cache && cached && !IsStatus(err, http.StatusNotFound) {
			log.Warn().
				Err(err).
				Str("url", url).
				Time("retrieved_at", record.RetrievedAt).
				Msg("serving stale download")
			return record.Body, nil
		}
		return nil, err
	}
	log.Debug().Str("url", url).Int("bytes", len(body)).Msg("downloaded")

	if !options.Cache {
		return body, nil
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.records[url] = fsRecord{Body: body, RetrievedAt: f.TimeNow().UTC()}
	if err := f.save(); err != nil {
		return nil, fmt.Errorf("saving download cache: %w", err)
	}

	return body, nil
}

// Writes all records to a temporary file and renames it into place.
// Caller holds the mutex.
func (f *Filesystem) save() error {
	buf, err := json.Marshal(f.records)
	if err != nil {
		return fmt.Errorf("marshalling: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*")
	if err != nil {
		return fmt.Errorf("creating: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("writing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing: %w", err)
	}

	return os.Rename(tmp.Name(), f.Path)
}
