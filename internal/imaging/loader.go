package imaging

import (
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SnapshotCache keeps decoded frame snapshots keyed by file path so that
// repeated diagnostics on the same frame do not decode it again.
//
// SnapshotCache is safe for concurrent use. When the number of cached frames
// exceeds the limit, the least recently loaded entry is dropped.
type SnapshotCache struct {
	mu     sync.RWMutex
	limit  int
	order  []string
	frames map[string]image.Image
}

// NewSnapshotCache creates an empty cache holding at most limit frames.
// A limit below 1 means unbounded.
func NewSnapshotCache(limit int) *SnapshotCache {
	return &SnapshotCache{
		limit:  limit,
		frames: make(map[string]image.Image),
	}
}

// Load returns the decoded frame at path, reading it from disk on first use.
// PNG and JPEG files are supported.
func (c *SnapshotCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.frames[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	c.Put(path, img)
	return img, nil
}

// Put stores an already decoded frame under key.
func (c *SnapshotCache) Put(key string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.frames[key]; !ok {
		c.order = append(c.order, key)
	}
	c.frames[key] = img

	for c.limit > 0 && len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.frames, oldest)
	}
}

// Evict removes key from the cache. Unknown keys are ignored.
func (c *SnapshotCache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.frames[key]; !ok {
		return
	}
	delete(c.frames, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached frames.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}

// SnapshotInfo describes a frame snapshot on disk.
type SnapshotInfo struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// DescribeSnapshot loads path through the cache and reports its size and
// format. The format comes from the file extension.
func DescribeSnapshot(cache *SnapshotCache, path string) (*SnapshotInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	}

	return &SnapshotInfo{
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
