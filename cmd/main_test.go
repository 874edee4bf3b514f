package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtesianplane/andarTayo-sub000/downloader"
	"github.com/kurtesianplane/andarTayo-sub000/model"
)

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"X-Key: secret", "Accept:application/json"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Key": "secret", "Accept": "application/json"}, headers)

	_, err = parseHeaders([]string{"no colon"})
	assert.Error(t, err)
}

func TestOpenSourceWithDataCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/lrt2/stops.json" {
			w.Write([]byte(`[{"id":"recto","name":"RECTO","sequence":1}]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	defer func() { dataURL, dataCache = "", "" }()
	dataURL = server.URL
	dataCache = filepath.Join(t.TempDir(), "downloads.json")

	read := func() (*model.Dataset, error) {
		d, err := OpenDownloader()
		require.NoError(t, err)
		_, ok := d.(*downloader.Filesystem)
		require.True(t, ok)

		source, closer, err := OpenSource(d)
		require.NoError(t, err)
		defer closer()

		return source.ReadDataset(context.Background(), "lrt2", model.DatasetStops)
	}

	ds, err := read()
	require.NoError(t, err)
	assert.Equal(t, model.FormatJSON, ds.Format)

	// Host gone, the next run still has the dataset
	server.Close()
	ds, err = read()
	require.NoError(t, err)
	assert.Contains(t, string(ds.Data), "RECTO")
}

func TestOpenDownloaderDefault(t *testing.T) {
	d, err := OpenDownloader()
	require.NoError(t, err)
	_, ok := d.(*downloader.MemoryDownloader)
	assert.True(t, ok)
}
