// Package pkg provides utilities shared by the trellis packages.
package pkg

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Spool is an append-only sequence of T kept in a temporary file, so large
// streams (captured test output) do not have to stay in memory.
type Spool[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	Range(fn func(index uint64, item T) error) error
	// Close releases the file and deletes it.
	Close() error
}

type fileSpool[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
	closed  bool
}

// NewSpool creates a Spool in dir, or in os.TempDir() when dir is empty.
func NewSpool[T any](dir string) (Spool[T], error) {
	if dir == "" {
		dir = os.TempDir()
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		slog.Error("failed to create spool directory", "path", dir, "error", err)
		return nil, fmt.Errorf("create spool directory: %w", err)
	}

	file, err := os.CreateTemp(dir, "trellis-spool-*.gob")
	if err != nil {
		slog.Error("failed to create spool file", "path", dir, "error", err)
		return nil, fmt.Errorf("create spool file: %w", err)
	}

	slog.Debug("created spool", "path", file.Name())

	return &fileSpool[T]{
		path:    file.Name(),
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}

func (s *fileSpool[T]) Append(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("append to closed spool %s", s.path)
	}

	if err := s.encoder.Encode(item); err != nil {
		slog.Error("failed to encode spool item", "path", s.path, "index", s.length, "error", err)
		return fmt.Errorf("encode item %d: %w", s.length, err)
	}

	s.length++

	return nil
}

func (s *fileSpool[T]) Path() string {
	return s.path
}

func (s *fileSpool[T]) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.length
}

func (s *fileSpool[T]) Range(fn func(index uint64, item T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("range over closed spool %s", s.path)
	}

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open spool: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close spool reader", "path", s.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	for i := range s.length {
		var item T

		if err := decoder.Decode(&item); err != nil {
			return fmt.Errorf("decode item %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

func (s *fileSpool[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.file.Close(); err != nil {
		slog.Error("failed to close spool", "path", s.path, "error", err)
		return err
	}

	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("remove spool: %w", err)
	}

	slog.Debug("closed spool", "path", s.path, "length", s.length)

	return nil
}
