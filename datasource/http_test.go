package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var sb strings.Builder
	zw := gzip.NewWriter(&sb)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return []byte(sb.String())
}

// newFileServer serves canonical files with range support plus their gzip
// twins, the way a static database host does.
func newFileServer(t *testing.T, files map[string][]byte, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for name, data := range files {
		mux.HandleFunc("/db/"+name+CompressedSuffix, func(w http.ResponseWriter, r *http.Request) {
			if hits != nil {
				hits.Add(1)
			}
			_, _ = w.Write(gzipBytes(t, data))
		})
		mux.HandleFunc("/db/"+name, func(w http.ResponseWriter, r *http.Request) {
			if hits != nil {
				hits.Add(1)
			}
			spec := strings.TrimPrefix(r.Header.Get("Range"), "bytes=")
			parts := strings.SplitN(spec, "-", 2)
			if len(parts) != 2 {
				_, _ = w.Write(data)
				return
			}
			start, _ := strconv.Atoi(parts[0])
			end, _ := strconv.Atoi(parts[1])
			if end >= len(data) {
				end = len(data) - 1
			}
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(data[start : end+1])
		})
	}
	return httptest.NewServer(mux)
}

func TestBulkSource_FetchAndSlice(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int64
	srv := newFileServer(t, map[string][]byte{"catalog.bin": []byte("hello world")}, &hits)
	defer srv.Close()

	src := NewBulkSource(srv.URL + "/db")

	whole, err := src.FetchWhole(ctx, "catalog.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), whole)

	// Ranges are served from the retained copy with no further requests.
	part, err := src.FetchRange(ctx, "catalog.bin", 6, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), part)
	assert.Equal(t, int64(1), hits.Load())

	_, err = src.FetchRange(ctx, "catalog.bin", 6, 100)
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestBulkSource_Prefetch(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int64
	srv := newFileServer(t, map[string][]byte{
		"a.bin": []byte("aaa"),
		"b.bin": []byte("bbb"),
	}, &hits)
	defer srv.Close()

	src := NewBulkSource(srv.URL + "/db")
	require.NoError(t, src.Prefetch(ctx, "a.bin", "b.bin"))
	assert.Equal(t, int64(2), hits.Load())

	_, err := src.FetchWhole(ctx, "a.bin")
	require.NoError(t, err)
	_, err = src.FetchWhole(ctx, "b.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load(), "prefetched files must not refetch")
}

func TestRangeSource_FetchRange(t *testing.T) {
	ctx := context.Background()
	srv := newFileServer(t, map[string][]byte{"set2gene.bin": []byte("0123456789")}, nil)
	defer srv.Close()

	src := NewRangeSource(srv.URL + "/db")

	part, err := src.FetchRange(ctx, "set2gene.bin", 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("3456"), part)

	empty, err := src.FetchRange(ctx, "set2gene.bin", 3, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Whole-file reads go through the gzip twin.
	whole, err := src.FetchWhole(ctx, "set2gene.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), whole)
}

func TestRangeSource_ServerWithoutRangeSupport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignores the Range header entirely.
		_, _ = w.Write([]byte("full body"))
	}))
	defer srv.Close()

	src := NewRangeSource(srv.URL)
	_, err := src.FetchRange(context.Background(), "file.bin", 0, 4)
	require.ErrorIs(t, err, ErrRangeUnsupported)
}

func TestHTTPSources_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewBulkSource(srv.URL).FetchWhole(context.Background(), "x.bin")
	require.ErrorIs(t, err, ErrNetwork)

	_, err = NewRangeSource(srv.URL).FetchRange(context.Background(), "x.bin", 0, 4)
	require.ErrorIs(t, err, ErrNetwork)
}

func TestBulkSource_CorruptPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not gzip"))
	}))
	defer srv.Close()

	_, err := NewBulkSource(srv.URL).FetchWhole(context.Background(), "x.bin")
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFetchFuncOverride(t *testing.T) {
	var seen atomic.Int64
	fetch := func(req *http.Request) (*http.Response, error) {
		seen.Add(1)
		rec := httptest.NewRecorder()
		_, _ = rec.Write(gzipBytes(t, []byte("injected")))
		return rec.Result(), nil
	}

	src := NewBulkSource("http://unreachable.invalid", WithFetchFunc(fetch))
	data, err := src.FetchWhole(context.Background(), "x.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("injected"), data)
	assert.Equal(t, int64(1), seen.Load())
}
