// Package imagestore uploads plant photos and returns their public URL.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// MaxImageSize bounds an uploaded photo.
const MaxImageSize = 10 << 20

var (
	ErrTooLarge = errors.New("image exceeds size limit")
	ErrEmpty    = errors.New("image is empty")
)

// Uploader stores an image and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, contentType string) (string, error)
}

func newKey() string {
	return "plants/" + uuid.NewString() + ".jpg"
}

// readImage reads r fully, enforcing MaxImageSize.
func readImage(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxImageSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
