package fileutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"baton/internal/logging"
	"baton/internal/retry"
	"baton/internal/services"
)

// Store performs retried file operations under one policy.
type Store struct {
	policy  retry.Policy
	logger  *slog.Logger
	timeout time.Duration
}

// New builds a Store. A zero timeout leaves the caller's context deadline in charge.
func New(policy retry.Policy, logger *slog.Logger, timeout time.Duration) *Store {
	return &Store{
		policy:  policy,
		logger:  logging.NewComponentLogger(logger, "fileutil"),
		timeout: timeout,
	}
}

// Policy returns the retry policy in use.
func (s *Store) Policy() retry.Policy {
	return s.policy
}

// WithPolicy returns a Store sharing configuration but retrying under p.
func (s *Store) WithPolicy(p retry.Policy) *Store {
	clone := *s
	clone.policy = p
	return &clone
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ReadFile reads path.
func (s *Store) ReadFile(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return retry.Run(ctx, s.policy, "read", path, func(context.Context) ([]byte, error) {
		return os.ReadFile(path)
	}, retry.WithLogger(s.logger))
}

// WriteFile atomically replaces path with data, creating parent directories.
func (s *Store) WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return retry.Exec(ctx, s.policy, "write", path, func(context.Context) error {
		return writeAtomic(path, data, perm)
	}, retry.WithLogger(s.logger))
}

// MkdirAll creates path and any missing parents.
func (s *Store) MkdirAll(ctx context.Context, path string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return retry.Exec(ctx, s.policy, "mkdir", path, func(context.Context) error {
		return os.MkdirAll(path, 0o755)
	}, retry.WithLogger(s.logger))
}

// ReadDir lists path sorted by filename.
func (s *Store) ReadDir(ctx context.Context, path string) ([]fs.DirEntry, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return retry.Run(ctx, s.policy, "list", path, func(context.Context) ([]fs.DirEntry, error) {
		return os.ReadDir(path)
	}, retry.WithLogger(s.logger))
}

// Stat returns file info for path.
func (s *Store) Stat(ctx context.Context, path string) (fs.FileInfo, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return retry.Run(ctx, s.policy, "stat", path, func(context.Context) (fs.FileInfo, error) {
		return os.Stat(path)
	}, retry.WithLogger(s.logger))
}

// Exists reports whether path is present. A missing path is not retried.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return retry.Run(ctx, s.policy, "stat", path, func(context.Context) (bool, error) {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, fs.ErrNotExist):
			return false, nil
		default:
			return false, err
		}
	}, retry.WithLogger(s.logger))
}

// Copy copies src to dst with size and checksum verification.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return retry.Exec(ctx, s.policy, "copy", src+" -> "+dst, func(context.Context) error {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return CopyFileVerified(src, dst)
	}, retry.WithLogger(s.logger))
}

// Remove deletes path. Removing a missing path succeeds.
func (s *Store) Remove(ctx context.Context, path string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return retry.Exec(ctx, s.policy, "delete", path, func(context.Context) error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}, retry.WithLogger(s.logger))
}

// ReadJSON reads path and decodes it into v. Decode failures are not retried
// and surface as a data error.
func (s *Store) ReadJSON(ctx context.Context, path string, v any) error {
	data, err := s.ReadFile(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return services.NewDataError("json", path, "parse "+filepath.Base(path), services.WithCause(err))
	}
	return nil
}

// WriteJSON encodes v with indentation and atomically writes it to path. It
// returns the number of bytes written.
func (s *Store) WriteJSON(ctx context.Context, path string, v any) (int, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return 0, services.NewDataError("json", path, "serialize "+filepath.Base(path), services.WithCause(err))
	}
	data = append(data, '\n')
	if err := s.WriteFile(ctx, path, data, 0o644); err != nil {
		return 0, err
	}
	return len(data), nil
}

func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
