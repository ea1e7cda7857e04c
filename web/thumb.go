package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
)

const (
	thumbQuality    = 80
	thumbCacheLimit = 512
)

// thumbnail resizes a stored photo to width, keeping its aspect ratio.
// Photos already narrower than width are re-encoded at their own size.
func thumbnail(data []byte, width int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image %v", b)
	}

	if b.Dx() > width {
		height := max(1, b.Dy()*width/b.Dx())
		img = transform.Resize(img, width, height, transform.Lanczos)
	}

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(thumbQuality)(&buf, img); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbCache keeps rendered thumbnails. Stored photos never change under
// a name, so entries only leave when the cache is full.
type thumbCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newThumbCache() *thumbCache {
	return &thumbCache{items: make(map[string][]byte)}
}

func (c *thumbCache) get(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[name]
	return data, ok
}

func (c *thumbCache) put(name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= thumbCacheLimit {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
	c.items[name] = data
}

func (c *thumbCache) drop(name string) {
	c.mu.Lock()
	delete(c.items, name)
	c.mu.Unlock()
}
