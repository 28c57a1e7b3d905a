package folder

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperoffice-ai/api-file-processor/api"
	"github.com/paperoffice-ai/api-file-processor/config"
	"github.com/paperoffice-ai/api-file-processor/errors"
)

// fakeAPI emulates the remote API end to end: job add, upload, status, and
// download. Jobs complete on their first status poll.
type fakeAPI struct {
	server   *httptest.Server
	addCalls atomic.Int64
	jobSeq   atomic.Int64

	// onAdd, when set, replaces the default accept-everything handler.
	onAdd func(w http.ResponseWriter, r *http.Request, call int64)

	// onDownload, when set, replaces the default result download handler.
	onDownload func(w http.ResponseWriter, r *http.Request)
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}

	mux := http.NewServeMux()
	mux.HandleFunc("/V5/job/add", func(w http.ResponseWriter, r *http.Request) {
		call := f.addCalls.Add(1)
		if f.onAdd != nil {
			f.onAdd(w, r, call)
			return
		}
		f.acceptJob(w)
	})
	mux.HandleFunc("/V5/job/upload/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"queued"}`))
	})
	mux.HandleFunc("/V5/job/status/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"completed","downloadlink":"%s/download"}`, f.server.URL)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		if f.onDownload != nil {
			f.onDownload(w, r)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="result.pdf"`)
		w.Write([]byte("done"))
	})

	f.server = httptest.NewTLSServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) acceptJob(w http.ResponseWriter) {
	id := f.jobSeq.Add(1)
	fmt.Fprintf(w,
		`{"status":"queued","job_id":"job-%d","job_assigned_api_endpoint":"%s","remaining_requests":{"1_minute":10,"1_hour":100}}`,
		id, strings.TrimPrefix(f.server.URL, "https://"))
}

func (f *fakeAPI) client(t *testing.T) *api.Client {
	t.Helper()
	c := api.NewClient("test-key", nil)
	c.SetHTTPClient(f.server.Client())
	return c
}

func (f *fakeAPI) addURL() string {
	return f.server.URL + "/V5/job/add"
}

// newSpec builds a folder spec over a temp input folder seeded with files.
func newSpec(t *testing.T, f *fakeAPI, fileNames ...string) config.FolderSpec {
	t.Helper()
	inputDir := t.TempDir()
	for _, name := range fileNames {
		require.NoError(t, os.WriteFile(filepath.Join(inputDir, name), []byte("%PDF "+name), 0o644))
	}
	return config.FolderSpec{
		FolderPath:   inputDir,
		OutputFolder: t.TempDir(),
		Endpoint: config.Endpoint{
			URL:     f.addURL(),
			Payload: map[string]interface{}{"document_type": "invoice"},
		},
	}
}

func TestProcessorRun(t *testing.T) {
	t.Run("every file is processed exactly once", func(t *testing.T) {
		f := newFakeAPI(t)
		var names []string
		for i := 0; i < 12; i++ {
			names = append(names, fmt.Sprintf("doc-%02d.pdf", i))
		}
		spec := newSpec(t, f, names...)
		p := NewProcessor(f.client(t), nil, Options{Workers: 4})

		result, err := p.Run(context.Background(), []config.FolderSpec{spec})

		require.NoError(t, err)
		assert.Equal(t, int64(12), result.FilesProcessed)
		assert.Equal(t, int64(1), result.FoldersProcessed)
		assert.False(t, result.Aborted)
		assert.Equal(t, int64(12), f.addCalls.Load())

		// All originals moved into the processed subfolder.
		remaining, err := os.ReadDir(spec.FolderPath)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, ProcessedDirName, remaining[0].Name())
		moved, err := os.ReadDir(filepath.Join(spec.FolderPath, ProcessedDirName))
		require.NoError(t, err)
		assert.Len(t, moved, 12)

		outputs, err := os.ReadDir(spec.OutputFolder)
		require.NoError(t, err)
		assert.Len(t, outputs, 12)
	})

	t.Run("auth failure aborts the whole run", func(t *testing.T) {
		f := newFakeAPI(t)
		f.onAdd = func(w http.ResponseWriter, r *http.Request, call int64) {
			w.Write([]byte(`{"status":"error","code":401,"message":"invalid API key"}`))
		}
		specs := []config.FolderSpec{
			newSpec(t, f, "a.pdf", "b.pdf"),
			newSpec(t, f, "c.pdf"),
		}
		p := NewProcessor(f.client(t), nil, Options{Workers: 2})

		result, err := p.Run(context.Background(), specs)

		require.Error(t, err)
		assert.True(t, errors.IsFatal(err))
		assert.True(t, result.Aborted)
		assert.Equal(t, int64(0), result.FilesProcessed)
		// The second folder was never touched.
		assert.Equal(t, int64(1), f.addCalls.Load())
	})

	t.Run("endpoint failure aborts the folder but not the run", func(t *testing.T) {
		f := newFakeAPI(t)
		f.onAdd = func(w http.ResponseWriter, r *http.Request, call int64) {
			if call == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			f.acceptJob(w)
		}
		broken := newSpec(t, f, "a.pdf", "b.pdf")
		healthy := newSpec(t, f, "c.pdf")
		p := NewProcessor(f.client(t), nil, Options{Workers: 2})

		result, err := p.Run(context.Background(), []config.FolderSpec{broken, healthy})

		require.NoError(t, err)
		assert.False(t, result.Aborted)
		assert.Equal(t, int64(1), result.FilesProcessed)
		assert.Equal(t, int64(2), result.FoldersProcessed)
	})

	t.Run("rate limited file is skipped and the rest proceed", func(t *testing.T) {
		f := newFakeAPI(t)
		f.onAdd = func(w http.ResponseWriter, r *http.Request, call int64) {
			if call == 1 {
				w.Write([]byte(`{"status":"error","code":429,"message":"too many requests"}`))
				return
			}
			f.acceptJob(w)
		}
		spec := newSpec(t, f, "a.pdf", "b.pdf", "c.pdf")
		p := NewProcessor(f.client(t), nil, Options{Workers: 2})

		result, err := p.Run(context.Background(), []config.FolderSpec{spec})

		require.NoError(t, err)
		assert.Equal(t, int64(2), result.FilesProcessed)
		assert.Equal(t, int64(3), f.addCalls.Load())
	})

	t.Run("broken download link skips the file, not the folder", func(t *testing.T) {
		f := newFakeAPI(t)
		f.onDownload = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		spec := newSpec(t, f, "a.pdf", "b.pdf", "c.pdf")
		p := NewProcessor(f.client(t), nil, Options{Workers: 1})

		result, err := p.Run(context.Background(), []config.FolderSpec{spec})

		require.NoError(t, err)
		assert.False(t, result.Aborted)
		// Every file was still submitted despite each download failing.
		assert.Equal(t, int64(3), f.addCalls.Load())
		assert.Equal(t, int64(0), result.FilesProcessed)
		assert.Equal(t, int64(1), result.FoldersProcessed)

		// Originals stay put for a later retry.
		for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
			_, statErr := os.Stat(filepath.Join(spec.FolderPath, name))
			assert.NoError(t, statErr)
		}
	})

	t.Run("missing input folder is skipped without error", func(t *testing.T) {
		f := newFakeAPI(t)
		spec := config.FolderSpec{
			FolderPath:   filepath.Join(t.TempDir(), "gone"),
			OutputFolder: t.TempDir(),
			Endpoint:     config.Endpoint{URL: f.addURL()},
		}
		p := NewProcessor(f.client(t), nil, Options{})

		result, err := p.Run(context.Background(), []config.FolderSpec{spec})

		require.NoError(t, err)
		assert.Equal(t, int64(0), result.FoldersProcessed)
		assert.Equal(t, int64(0), f.addCalls.Load())
	})

	t.Run("empty folder counts as processed", func(t *testing.T) {
		f := newFakeAPI(t)
		spec := newSpec(t, f)
		p := NewProcessor(f.client(t), nil, Options{})

		result, err := p.Run(context.Background(), []config.FolderSpec{spec})

		require.NoError(t, err)
		assert.Equal(t, int64(1), result.FoldersProcessed)
		assert.Equal(t, int64(0), f.addCalls.Load())
	})

	t.Run("replay mode repeats the first file and keeps originals", func(t *testing.T) {
		f := newFakeAPI(t)
		spec := newSpec(t, f, "bench.pdf", "ignored.pdf")
		p := NewProcessor(f.client(t), nil, Options{Workers: 2, Replay: true, ReplayCount: 5})

		result, err := p.Run(context.Background(), []config.FolderSpec{spec})

		require.NoError(t, err)
		assert.Equal(t, int64(5), result.FilesProcessed)
		assert.Equal(t, int64(5), f.addCalls.Load())

		// Originals untouched, single overwritten output.
		_, err = os.Stat(filepath.Join(spec.FolderPath, "bench.pdf"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(spec.FolderPath, "ignored.pdf"))
		assert.NoError(t, err)
		outputs, err := os.ReadDir(spec.OutputFolder)
		require.NoError(t, err)
		assert.Len(t, outputs, 1)
		assert.Equal(t, "result.pdf", outputs[0].Name())
	})

	t.Run("processed subfolder is never re-submitted", func(t *testing.T) {
		f := newFakeAPI(t)
		spec := newSpec(t, f, "a.pdf")
		spec.Recursive = true
		processed := filepath.Join(spec.FolderPath, ProcessedDirName)
		require.NoError(t, os.MkdirAll(processed, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(processed, "old.pdf"), []byte("x"), 0o644))
		p := NewProcessor(f.client(t), nil, Options{})

		result, err := p.Run(context.Background(), []config.FolderSpec{spec})

		require.NoError(t, err)
		assert.Equal(t, int64(1), result.FilesProcessed)
		assert.Equal(t, int64(1), f.addCalls.Load())
	})
}
