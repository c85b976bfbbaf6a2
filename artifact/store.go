package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned when a named artifact does not exist.
//
// Backend implementations should return an error satisfying
// errors.Is(err, ErrNotFound); the default maps to os.ErrNotExist so
// plain filesystem errors match without translation.
var ErrNotFound = os.ErrNotExist

// Backend is the byte-level storage abstraction behind a Store.
//
// Put must be atomic with respect to Exists: a name must never be
// visible before its content is completely written. Concurrent writers
// of the same name may race, but the loser only recomputes work; the
// stored bytes are always a complete artifact.
type Backend interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Store persists typed artifacts on a Backend, encoding them as
// envelopes with the configured codec and compression.
type Store struct {
	backend     Backend
	codec       Codec
	compression Compression
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCodec sets the codec used when writing envelopes. Reading always
// honors the codec named in the envelope header. A nil codec selects
// the default.
func WithCodec(c Codec) StoreOption {
	return func(s *Store) {
		if c == nil {
			c = Default
		}
		s.codec = c
	}
}

// WithCompression sets the compression used when writing envelopes.
func WithCompression(comp Compression) StoreOption {
	return func(s *Store) { s.compression = comp }
}

// NewStore creates a Store over the given backend.
// The default configuration writes go-json payloads with ZSTD compression.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend:     backend,
		codec:       Default,
		compression: CompressionZSTD,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save encodes v and writes it under name.
func (s *Store) Save(ctx context.Context, name string, v any) error {
	data, err := wrap(s.codec, s.compression, v)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, name, data); err != nil {
		return fmt.Errorf("artifact: put %q: %w", name, err)
	}
	return nil
}

// Load reads the artifact under name and decodes it into v.
func (s *Store) Load(ctx context.Context, name string, v any) error {
	data, err := s.backend.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("artifact: %q: %w", name, ErrNotFound)
		}
		return fmt.Errorf("artifact: get %q: %w", name, err)
	}
	return unwrap(data, v)
}

// SaveRaw writes data under name without an envelope. Used for
// interchange formats with their own container, such as PNG region maps.
func (s *Store) SaveRaw(ctx context.Context, name string, data []byte) error {
	if err := s.backend.Put(ctx, name, data); err != nil {
		return fmt.Errorf("artifact: put %q: %w", name, err)
	}
	return nil
}

// LoadRaw reads raw bytes under name.
func (s *Store) LoadRaw(ctx context.Context, name string) ([]byte, error) {
	data, err := s.backend.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("artifact: %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("artifact: get %q: %w", name, err)
	}
	return data, nil
}

// Exists reports whether an artifact is present under name.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	return s.backend.Exists(ctx, name)
}

// List returns the names of all artifacts with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return s.backend.List(ctx, prefix)
}
