package errorutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// FileError represents a file operation error with additional context
type FileError struct {
	Operation  string // e.g. "read", "write_temp", "move"
	Path       string
	Underlying error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *FileError) Unwrap() error {
	return e.Underlying
}

// NewFileError creates a new FileError
func NewFileError(operation, path string, err error) *FileError {
	return &FileError{
		Operation:  operation,
		Path:       path,
		Underlying: err,
	}
}

// LogFileError logs a file error with structured context
func LogFileError(logger *slog.Logger, fileErr *FileError) *FileError {
	if logger == nil {
		return fileErr
	}

	attrs := []slog.Attr{
		slog.String("operation", fileErr.Operation),
		slog.String("file_path", fileErr.Path),
		slog.String("error", fileErr.Underlying.Error()),
		slog.String("error_type", FileErrorType(fileErr.Underlying)),
	}
	if dir := filepath.Dir(fileErr.Path); dir != "." {
		attrs = append(attrs, slog.String("directory", dir))
	}

	logger.Error("File operation failed", toAny(attrs)...)
	return fileErr
}

// FileErrorType classifies a file error for logging
func FileErrorType(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, fs.ErrNotExist):
		return "file_not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission_denied"
	case errors.Is(err, fs.ErrExist):
		return "file_exists"
	case errors.Is(err, syscall.ENOSPC):
		return "no_space_left"
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return "path_error_" + pathErr.Op
	}
	return "generic_file_error"
}

// EnsureDirectoryWithLogging creates path (and parents) if missing
func EnsureDirectoryWithLogging(logger *slog.Logger, path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return LogFileError(logger, NewFileError("mkdir", path, err))
	}

	if logger != nil {
		logger.Debug("Directory ensured",
			slog.String("directory_path", path),
			slog.String("permissions", perm.String()))
	}
	return nil
}

// SafeFileWrite writes through a temp file and rename, keeping a backup
// of any existing file until the write succeeds
func SafeFileWrite(logger *slog.Logger, path string, data []byte, perm os.FileMode) error {
	backupPath := ""
	if _, err := os.Stat(path); err == nil {
		backupPath = path + ".backup"
		if err := os.Rename(path, backupPath); err != nil {
			return LogFileError(logger, NewFileError("backup", path, err))
		}
	}
	restore := func() {
		if backupPath != "" {
			os.Rename(backupPath, path)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		restore()
		return LogFileError(logger, NewFileError("write_temp", tempPath, err))
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		restore()
		return LogFileError(logger, NewFileError("move", path, err))
	}
	if backupPath != "" {
		os.Remove(backupPath)
	}

	if logger != nil {
		logger.Debug("File written successfully",
			slog.String("file_path", path),
			slog.Int("bytes_written", len(data)),
			slog.String("permissions", perm.String()))
	}
	return nil
}
