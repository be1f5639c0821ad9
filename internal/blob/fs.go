package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FilesystemStore implements Store on the local filesystem. Keys map to
// relative paths under the root; a sidecar file (key + ".meta") carries the
// artifact attributes.
type FilesystemStore struct {
	root string
}

// NewFilesystem returns a filesystem-backed artifact store rooted at path,
// creating the root if needed.
func NewFilesystem(root string) (*FilesystemStore, error) {
	if root == "" {
		root = "./snapshots"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FilesystemStore{root: root}, nil
}

// Driver returns the backend identifier.
func (s *FilesystemStore) Driver() Driver { return DriverFilesystem }

// sanitizeKey forbids traversal and absolute paths so keys stay under root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q: contains '..'", key)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid key %q: absolute", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key %q: traversal", key)
	}
	return clean, nil
}

func (s *FilesystemStore) paths(key string) (dataPath, metaPath string, err error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath = filepath.Join(s.root, filepath.FromSlash(k))
	metaPath = dataPath + ".meta"
	return dataPath, metaPath, nil
}

// Put stores a new artifact; it fails if the key exists.
func (s *FilesystemStore) Put(_ context.Context, key string, payload []byte, opts PutOptions) (Artifact, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return Artifact{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Artifact{}, ErrExists
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Artifact{}, err
	}
	artifact := Artifact{
		Key:         key,
		Size:        int64(len(payload)),
		ContentType: opts.ContentType,
		Metadata:    cloneMetadata(opts.Metadata),
		CreatedAt:   time.Now().UTC(),
	}
	meta, err := json.Marshal(artifact)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.WriteFile(dataPath, payload, 0o644); err != nil {
		return Artifact{}, err
	}
	if err := os.WriteFile(metaPath, meta, 0o644); err != nil {
		_ = os.Remove(dataPath)
		return Artifact{}, err
	}
	return artifact, nil
}

// Get returns the artifact and its payload.
func (s *FilesystemStore) Get(_ context.Context, key string) (Artifact, []byte, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return Artifact{}, nil, err
	}
	payload, err := os.ReadFile(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, nil, ErrNotFound
		}
		return Artifact{}, nil, err
	}
	artifact, err := s.readMeta(metaPath, key, int64(len(payload)))
	if err != nil {
		return Artifact{}, nil, err
	}
	return artifact, payload, nil
}

// Delete removes the artifact and its sidecar, reporting whether it existed.
func (s *FilesystemStore) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dataPath); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.Remove(dataPath); err != nil {
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// List returns artifacts whose keys start with prefix, sorted by key.
func (s *FilesystemStore) List(_ context.Context, prefix string) ([]Artifact, error) {
	var out []Artifact
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".meta") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		artifact, err := s.readMeta(path+".meta", key, info.Size())
		if err != nil {
			return err
		}
		out = append(out, artifact)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// readMeta loads the sidecar, synthesizing minimal attributes if it is gone.
func (s *FilesystemStore) readMeta(metaPath, key string, size int64) (Artifact, error) {
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{Key: key, Size: size}, nil
		}
		return Artifact{}, err
	}
	var artifact Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("read meta for %s: %w", key, err)
	}
	artifact.Key = key
	artifact.Size = size
	return artifact, nil
}
