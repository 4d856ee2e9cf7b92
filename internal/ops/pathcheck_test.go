package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tagline/internal/config"
	"github.com/hpungsan/tagline/internal/errors"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0600))
}

func TestValidatePath_Rejections(t *testing.T) {
	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	tests := []struct {
		name string
		path string
		cfg  *config.Config
	}{
		{"empty", "", unsafe},
		{"parent traversal", "../train.jsonl", unsafe},
		{"mid-path traversal", "/tmp/../etc/train.jsonl", unsafe},
		{"no extension", "/tmp/train", unsafe},
		{"wrong extension", "/tmp/train.json", unsafe},
		{"outside exports dir", "/tmp/train.jsonl", config.DefaultConfig()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, PathCheckWrite, tt.cfg)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}

	in := filepath.Join(dir, "in.jsonl")
	writeFile(t, in)
	assert.NoError(t, ValidatePath(in, PathCheckRead, cfg))
	assert.NoError(t, ValidatePath(filepath.Join(dir, "out.jsonl"), PathCheckWrite, cfg))

	other := filepath.Join(t.TempDir(), "other.jsonl")
	writeFile(t, other)
	assert.Error(t, ValidatePath(other, PathCheckRead, cfg))
}

func TestValidatePath_RelativeAllowedPathIgnored(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{"relative/dir"}

	err := ValidatePath(filepath.Join(t.TempDir(), "x.jsonl"), PathCheckWrite, cfg)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestValidatePath_AllowUnsafePaths(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	in := filepath.Join(dir, "in.jsonl")
	writeFile(t, in)
	assert.NoError(t, ValidatePath(in, PathCheckRead, cfg))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0700))
	assert.NoError(t, ValidatePath(filepath.Join(dir, "nested", "out.jsonl"), PathCheckWrite, cfg))
}

func TestValidatePath_FileNotFound(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	err := ValidatePath(filepath.Join(t.TempDir(), "missing.jsonl"), PathCheckRead, cfg)
	assert.True(t, errors.Is(err, errors.ErrFileNotFound), "got %v", err)
}

func TestValidatePath_NestedPathRejected(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0700))
	nested := filepath.Join(sub, "in.jsonl")
	writeFile(t, nested)

	for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
		err := ValidatePath(nested, mode, cfg)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "mode %d: %v", mode, err)
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "secret.jsonl")
	writeFile(t, target)

	link := filepath.Join(dir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	allowed := config.DefaultConfig()
	allowed.AllowedPaths = []string{dir}
	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	for name, cfg := range map[string]*config.Config{"allowed": allowed, "unsafe": unsafe} {
		t.Run(name, func(t *testing.T) {
			for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
				err := ValidatePath(link, mode, cfg)
				assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "mode %d: %v", mode, err)
			}
		})
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/home/user/train.jsonl", false},
		{"../train.jsonl", true},
		{"/home/../etc/passwd", true},
		{"./train.jsonl", false},
		{"/home/user/.tagline/exports/a.jsonl", false},
		{"train..v2.jsonl", false},
		{"/tmp/a/b/../c.jsonl", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, containsTraversal(tt.path))
		})
	}
}
