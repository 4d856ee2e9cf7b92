//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/tagline/internal/errors"
)

// noFollowFlags refuse a symlink in the final path component. Parent
// directories are covered by ValidatePath's no-subdirectory rule.
const noFollowFlags = syscall.O_NOFOLLOW | syscall.O_CLOEXEC

// openFileNoFollow opens an export file for writing.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return openNoFollow(path, flag, perm, "cannot write to symlink")
}

// openFileNoFollowRead opens an import file for reading.
func openFileNoFollowRead(path string) (*os.File, error) {
	return openNoFollow(path, syscall.O_RDONLY, 0, "cannot read from symlink")
}

func openNoFollow(path string, flag int, perm os.FileMode, symlinkMsg string) (*os.File, error) {
	fd, err := syscall.Open(path, flag|noFollowFlags, uint32(perm))
	switch {
	case err == nil:
		return os.NewFile(uintptr(fd), path), nil
	case stderrors.Is(err, syscall.ELOOP):
		return nil, errors.NewInvalidRequest(symlinkMsg)
	case stderrors.Is(err, syscall.ENOENT) && flag&(os.O_WRONLY|os.O_RDWR) == 0:
		return nil, errors.NewFileNotFound(path)
	default:
		return nil, err
	}
}
