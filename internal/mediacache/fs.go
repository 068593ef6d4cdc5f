package mediacache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sidecar struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// FSCache stores each entry as <id>.bin with a <id>.json sidecar
type FSCache struct {
	root string
	log  *zap.Logger
}

// NewFSCache creates the cache directory if needed
func NewFSCache(root string, log *zap.Logger) (*FSCache, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create media cache directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FSCache{root: root, log: log}, nil
}

func (c *FSCache) dataPath(id string) string { return filepath.Join(c.root, id+".bin") }
func (c *FSCache) metaPath(id string) string { return filepath.Join(c.root, id+".json") }

func (c *FSCache) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	id := uuid.NewString()

	tmp, err := os.CreateTemp(c.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, ctxReader{ctx, r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write media %s: %w", name, err)
	}

	meta, err := json.Marshal(sidecar{Name: name, Size: size})
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(c.metaPath(id), meta); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), c.dataPath(id)); err != nil {
		os.Remove(c.metaPath(id))
		return "", fmt.Errorf("commit media %s: %w", name, err)
	}

	c.log.Debug("media cached", zap.String("id", id), zap.String("name", name), zap.Int64("size", size))
	return id, nil
}

func (c *FSCache) Get(ctx context.Context, id string) (*Media, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(c.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: media %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read media metadata: %w", err)
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode media metadata %s: %w", id, err)
	}

	f, err := os.Open(c.dataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: media %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("open media %s: %w", id, err)
	}
	return &Media{ID: id, Name: meta.Name, Size: meta.Size, Body: f}, nil
}

func (c *FSCache) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	err := os.Remove(c.dataPath(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: media %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	if err := os.Remove(c.metaPath(id)); err != nil && !os.IsNotExist(err) {
		c.log.Warn("orphaned media sidecar", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// ids are always uuids; anything else could escape the cache root
func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: media %q", ErrNotFound, id)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ctxReader stops a long copy once ctx is cancelled
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
