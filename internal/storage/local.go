package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"coursepress/internal/apperr"
)

// Disk stores files under a local directory served at a URL prefix.
type Disk struct {
	root   *os.Root
	prefix string
}

// NewDisk opens (creating if needed) dir as the upload root.
func NewDisk(dir, urlPrefix string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open uploads dir: %w", err)
	}
	return &Disk{root: root, prefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Put writes body to key. os.Root keeps writes inside the upload directory.
func (d *Disk) Put(ctx context.Context, key, _ string, body io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.mkdirAll(path.Dir(key)); err != nil {
		return err
	}

	f, err := d.root.OpenFile(key, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	n, err := io.Copy(f, io.LimitReader(body, size))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n != size {
		err = fmt.Errorf("short write: %d of %d bytes", n, size)
	}
	if err != nil {
		_ = d.root.Remove(key)
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (d *Disk) mkdirAll(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if err := d.mkdirAll(path.Dir(dir)); err != nil {
		return err
	}
	if err := d.root.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// Delete removes key. A missing file is reported as NotFound.
func (d *Disk) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.root.Remove(key); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.NotFound("File")
		}
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL for key.
func (d *Disk) URL(key string) string {
	return d.prefix + "/" + key
}

// KeyFromURL strips the URL prefix from a public file URL.
func (d *Disk) KeyFromURL(rawURL string) (string, bool) {
	return strings.CutPrefix(rawURL, d.prefix+"/")
}

// Dir returns the upload directory for serving files over HTTP.
func (d *Disk) Dir() fs.FS {
	return d.root.FS()
}

// Close releases the directory handle.
func (d *Disk) Close() error {
	return d.root.Close()
}
