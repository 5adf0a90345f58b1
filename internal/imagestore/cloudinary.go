package imagestore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const cloudinaryFolder = "plants"

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

type CloudinaryStore struct {
	api cloudinaryAPI
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{api: &cld.Upload}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	data, err := readImage(r)
	if err != nil {
		return "", err
	}

	// The public ID is the key without folder and extension.
	publicID := strings.TrimSuffix(strings.TrimPrefix(newKey(), cloudinaryFolder+"/"), ".jpg")
	res, err := s.api.Upload(ctx, data, uploader.UploadParams{
		Folder:       cloudinaryFolder,
		PublicID:     publicID,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload image: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}
