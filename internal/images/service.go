package images

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"station/internal/db/repositories"
	"station/internal/storage"
	"station/pkg/models"
)

// Service composes a DiskStore with the images repository to give
// content-addressed upload/dedup/copy semantics (spec §4.10 step 3, §8
// dedup invariant).
type Service struct {
	store *DiskStore
	repo  *repositories.ImageRepo
}

func NewService(store *DiskStore, repo *repositories.ImageRepo) *Service {
	return &Service{store: store, repo: repo}
}

// Upload stores content under its content hash, reusing an existing row
// if identical bytes were uploaded before (spec §8 seed test 1).
func (s *Service) Upload(ctx context.Context, originalFilename, mimeType string, content []byte) (*models.Image, error) {
	hash := Hash(content)

	existing, err := s.repo.FindBySHA256(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("images: lookup existing: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	id := "img_" + newULID()
	ext := filepath.Ext(originalFilename)
	stored := fmt.Sprintf("%s_%s%s", id, slugify(strings.TrimSuffix(originalFilename, ext)), ext)

	if _, err := s.store.Put(ctx, stored, bytes.NewReader(content), storage.PutOptions{ContentType: mimeType}); err != nil {
		return nil, fmt.Errorf("images: put: %w", err)
	}

	img := &models.Image{
		ID:               id,
		StoredFilename:   stored,
		OriginalFilename: originalFilename,
		MimeType:         mimeType,
		SizeBytes:        int64(len(content)),
		SHA256Hex:        hash,
	}
	if err := s.repo.Create(ctx, img); err != nil {
		return nil, fmt.Errorf("images: create row: %w", err)
	}
	return img, nil
}

// CopyToWorktree copies an image blob into <worktree>/.vibe-images/,
// skipping files already present, and ensures that directory carries a
// `*` .gitignore so copied blobs stay untracked (spec §4.10 step 3).
func (s *Service) CopyToWorktree(ctx context.Context, img *models.Image, worktreeDir string) error {
	destDir := filepath.Join(worktreeDir, ".vibe-images")
	target, err := NewDiskStore(destDir)
	if err != nil {
		return err
	}

	exists, err := target.Exists(ctx, img.StoredFilename)
	if err != nil {
		return err
	}
	if !exists {
		rc, _, err := s.store.Get(ctx, img.StoredFilename)
		if err != nil {
			return err
		}
		defer rc.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return err
		}
		if _, err := target.Put(ctx, img.StoredFilename, bytes.NewReader(buf.Bytes()), storage.PutOptions{ContentType: img.MimeType}); err != nil {
			return err
		}
	}

	return writeGitignoreAll(destDir)
}

func writeGitignoreAll(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("*\n"), 0644)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 16 {
		out = out[:16]
	}
	return out
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
