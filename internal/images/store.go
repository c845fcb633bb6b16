// Package images implements the content-addressed image cache of spec
// §4.10/§6 (files stored directly under the store root as
// `img_<ULID>_<slug><ext>`, not a UUID name, deduped by SHA-256) on
// top of the teacher's internal/storage.FileStore interface, swapping its
// NATS JetStream backend (removed along with the rest of the remote-sync
// stack) for a local-disk implementation using tmp+rename atomicity, per
// spec §5 "writes use tmp + rename atomicity".
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"station/internal/storage"
)

// DiskStore is a local-filesystem FileStore rooted at a directory,
// satisfying storage.FileStore.
type DiskStore struct {
	root string
	mu   sync.RWMutex
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("images: mkdir root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) pathFor(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *DiskStore) Put(ctx context.Context, key string, reader io.Reader, opts storage.PutOptions) (*storage.FileInfo, error) {
	path := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, storage.NewFileError("Put", key, err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, storage.NewFileError("Put", key, err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), reader)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, storage.NewFileError("Put", key, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, storage.NewFileError("Put", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, storage.NewFileError("Put", key, err)
	}

	s.mu.Lock()
	err = os.Rename(tmp, path)
	s.mu.Unlock()
	if err != nil {
		os.Remove(tmp)
		return nil, storage.NewFileError("Put", key, err)
	}

	return &storage.FileInfo{
		Key:         key,
		Size:        size,
		ContentType: opts.ContentType,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		CreatedAt:   time.Now(),
		Metadata:    opts.Metadata,
	}, nil
}

func (s *DiskStore) Get(ctx context.Context, key string) (io.ReadCloser, *storage.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.pathFor(key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, storage.NewFileError("Get", key, storage.ErrFileNotFound)
		}
		return nil, nil, storage.NewFileError("Get", key, err)
	}
	info, err := s.statInfo(key, path)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return storage.NewFileError("Delete", key, err)
	}
	return nil
}

func (s *DiskStore) List(ctx context.Context, prefix string) ([]*storage.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.FileInfo
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := s.statInfo(key, path)
		if err == nil {
			out = append(out, fi)
		}
		return nil
	})
	if err != nil {
		return nil, storage.NewFileError("List", prefix, err)
	}
	return out, nil
}

func (s *DiskStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.pathFor(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *DiskStore) GetInfo(ctx context.Context, key string) (*storage.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statInfo(key, s.pathFor(key))
}

func (s *DiskStore) statInfo(key, path string) (*storage.FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewFileError("GetInfo", key, storage.ErrFileNotFound)
		}
		return nil, storage.NewFileError("GetInfo", key, err)
	}
	return &storage.FileInfo{Key: key, Size: stat.Size(), CreatedAt: stat.ModTime()}, nil
}

func (s *DiskStore) Close() error { return nil }

// Hash computes the content hash used for dedup (spec §8: "∀ image I
// uploaded twice with identical bytes: a single row exists whose hash =
// SHA256(bytes)").
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
