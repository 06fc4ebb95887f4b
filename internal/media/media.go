package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/teris-io/shortid"
)

// MaxImageSize bounds a decoded upload.
const MaxImageSize = 4 << 20

var ErrInvalidImage = errors.New("invalid image")

// Uploader stores an image and returns the reference kept on the message.
// Remove discards a reference returned by Upload.
type Uploader interface {
	Upload(ctx context.Context, data string) (string, error)
	Remove(ctx context.Context, ref string) error
}

// DiskUploader writes images under a directory served at baseURL.
type DiskUploader struct {
	dir     string
	baseURL string
}

func NewDiskUploader(dir, baseURL string) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}

	return &DiskUploader{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Upload accepts an http(s) URL, which is kept as is, or a data URL or raw
// base64 payload, which must decode to an image.
func (u *DiskUploader) Upload(ctx context.Context, data string) (string, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "http://") || strings.HasPrefix(data, "https://") {
		return data, nil
	}

	raw, err := decode(data)
	if err != nil {
		return "", err
	}

	mt := mimetype.Detect(raw)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, mt.String())
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate image id: %w", err)
	}

	name := id + mt.Extension()
	if err := os.WriteFile(filepath.Join(u.dir, name), raw, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	return u.baseURL + "/" + name, nil
}

func decode(data string) ([]byte, error) {
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ",")
		if idx < 0 || !strings.HasSuffix(data[:idx], ";base64") {
			return nil, fmt.Errorf("%w: malformed data url", ErrInvalidImage)
		}
		data = data[idx+1:]
	}

	if base64.StdEncoding.DecodedLen(len(data)) > MaxImageSize+3 {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageSize)
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	if len(raw) > MaxImageSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageSize)
	}

	return raw, nil
}

// Remove deletes the file behind a reference this uploader wrote. External
// URLs and files already gone are ignored.
func (u *DiskUploader) Remove(_ context.Context, ref string) error {
	name, ok := strings.CutPrefix(ref, u.baseURL+"/")
	if !ok || name == "" || name != filepath.Base(name) {
		return nil
	}

	if err := os.Remove(filepath.Join(u.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}

	return nil
}
