package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "deploykit.json",
			content: `{
  "database_path": "/var/lib/deploykit/status.db",
  "shared_export_dir": "/srv/deploykit/exports",
  "staging_dir": "/common",
  "privileged_prefixes": ["/var/www/html/"],
  "privileged_user": "webadmin"
}`,
		},
		{
			name: "yaml",
			file: "deploykit.yaml",
			content: `database_path: /var/lib/deploykit/status.db
shared_export_dir: /srv/deploykit/exports
staging_dir: /common
privileged_prefixes:
  - /var/www/html/
privileged_user: webadmin
`,
		},
		{
			name: "hcl",
			file: "deploykit.hcl",
			content: `database_path = "/var/lib/deploykit/status.db"
shared_export_dir = "/srv/deploykit/exports"
staging_dir = "/common"
privileged_prefixes = ["/var/www/html/"]
privileged_user = "webadmin"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(context.Background(), writeConfig(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, "/var/lib/deploykit/status.db", cfg.DatabasePath)
			assert.Equal(t, "/srv/deploykit/exports", cfg.SharedExportDir)
			assert.Equal(t, []string{"/var/www/html/"}, cfg.PrivilegedPrefixes)
			assert.Equal(t, "webadmin", cfg.PrivilegedUser)
			// defaults
			assert.Equal(t, 60*time.Second, cfg.CloneTimeout())
			assert.Equal(t, "deploy.json", cfg.InstructionFile)
		})
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(context.Background(), writeConfig(t, "deploykit.toml", "x = 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config extension")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing_database",
			cfg:     Config{SharedExportDir: "/exports"},
			wantErr: "database_path is required",
		},
		{
			name:    "missing_export_dir",
			cfg:     Config{DatabasePath: "s.db"},
			wantErr: "shared_export_dir is required",
		},
		{
			name: "privileged_needs_staging",
			cfg: Config{
				DatabasePath:       "s.db",
				SharedExportDir:    "/exports",
				PrivilegedPrefixes: []string{"/var/www/html/"},
				PrivilegedUser:     "webadmin",
			},
			wantErr: "staging_dir is required",
		},
		{
			name: "privileged_needs_user",
			cfg: Config{
				DatabasePath:       "s.db",
				SharedExportDir:    "/exports",
				PrivilegedPrefixes: []string{"/var/www/html/"},
				StagingDir:         "/common",
			},
			wantErr: "privileged_user is required",
		},
		{
			name: "minimal_ok",
			cfg:  Config{DatabasePath: "s.db", SharedExportDir: "/exports"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIsPrivileged(t *testing.T) {
	cfg := Config{PrivilegedPrefixes: []string{"/var/www/html/", "/srv/static/"}}
	assert.True(t, cfg.IsPrivileged("/var/www/html/site/index.html"))
	assert.True(t, cfg.IsPrivileged("/srv/static/app.js"))
	assert.False(t, cfg.IsPrivileged("/home/automation/file.txt"))
	assert.False(t, cfg.IsPrivileged("/var/www/htmlish/file"))
}
