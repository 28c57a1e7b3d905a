package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperoffice-ai/api-file-processor/errors"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api_file_processor_config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFolderSettings(t *testing.T) {
	t.Run("valid settings parse with payload intact", func(t *testing.T) {
		path := writeSettings(t, `{
			"folders": [{
				"folder_path": "/data/in",
				"output_folder": "/data/out",
				"recursive": true,
				"endpoint": {
					"url": "https://api5.paperoffice.com/V5/job/add",
					"payload": {"document_type": "invoice", "ocr": true}
				}
			}],
			"tests_amount": 25
		}`)

		settings, err := LoadFolderSettings(path)

		require.NoError(t, err)
		require.Len(t, settings.Folders, 1)
		folder := settings.Folders[0]
		assert.Equal(t, "/data/in", folder.FolderPath)
		assert.Equal(t, "/data/out", folder.OutputFolder)
		assert.True(t, folder.Recursive)
		assert.Equal(t, "invoice", folder.Endpoint.Payload["document_type"])
		assert.Equal(t, 25, settings.TestsAmount)
	})

	t.Run("missing file is run-fatal", func(t *testing.T) {
		_, err := LoadFolderSettings(filepath.Join(t.TempDir(), "nope.json"))

		require.Error(t, err)
		assert.True(t, errors.IsFatal(err))
	})

	t.Run("invalid json is run-fatal", func(t *testing.T) {
		path := writeSettings(t, `{"folders": [`)

		_, err := LoadFolderSettings(path)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
	})

	t.Run("empty folder list is rejected", func(t *testing.T) {
		path := writeSettings(t, `{"folders": []}`)

		_, err := LoadFolderSettings(path)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
	})

	t.Run("each missing key is named", func(t *testing.T) {
		cases := []struct {
			name    string
			content string
			wantKey string
		}{
			{
				"missing folder_path",
				`{"folders": [{"output_folder": "/o", "endpoint": {"url": "https://x.test/add"}}]}`,
				"folder_path",
			},
			{
				"missing output_folder",
				`{"folders": [{"folder_path": "/i", "endpoint": {"url": "https://x.test/add"}}]}`,
				"output_folder",
			},
			{
				"missing endpoint url",
				`{"folders": [{"folder_path": "/i", "output_folder": "/o"}]}`,
				"endpoint.url",
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				path := writeSettings(t, tc.content)
				_, err := LoadFolderSettings(path)
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
				assert.Contains(t, err.Error(), tc.wantKey)
			})
		}
	})

	t.Run("input and output folder may not collide", func(t *testing.T) {
		path := writeSettings(t, `{"folders": [{
			"folder_path": "/same", "output_folder": "/same",
			"endpoint": {"url": "https://x.test/add"}
		}]}`)

		_, err := LoadFolderSettings(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "must differ")
	})

	t.Run("relative endpoint url is rejected", func(t *testing.T) {
		path := writeSettings(t, `{"folders": [{
			"folder_path": "/i", "output_folder": "/o",
			"endpoint": {"url": "V5/job/add"}
		}]}`)

		_, err := LoadFolderSettings(path)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
	})
}

func TestLoadSettings(t *testing.T) {
	t.Run("defaults apply without environment", func(t *testing.T) {
		s := LoadSettings()

		assert.Equal(t, "INFO", s.LogLevel)
		assert.Equal(t, 10, s.LogFileMaxMB)
		assert.Equal(t, 5, s.LogFileBackupCount)
		assert.Equal(t, 4, s.Workers)
		assert.Equal(t, 0, s.SubmissionsPerMinute)
		assert.Empty(t, s.APIKey)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("APIFP_API_KEY", "key-from-env")
		t.Setenv("APIFP_LOG_LEVEL", "debug")
		t.Setenv("APIFP_WORKERS", "8")

		s := LoadSettings()

		assert.Equal(t, "key-from-env", s.APIKey)
		assert.Equal(t, "DEBUG", s.LogLevel)
		assert.Equal(t, 8, s.Workers)
		assert.Empty(t, s.Notices)
	})

	t.Run("invalid values fall back with a notice", func(t *testing.T) {
		t.Setenv("APIFP_LOG_LEVEL", "LOUD")
		t.Setenv("APIFP_LOG_FILE_MAX_MB", "-3")

		s := LoadSettings()

		assert.Equal(t, "INFO", s.LogLevel)
		assert.Equal(t, 10, s.LogFileMaxMB)
		assert.Len(t, s.Notices, 2)
	})
}
