package controllers

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"minima/minima/services/search"
	"minima/minima/sources/storage"
	"minima/minima/utils/types"

	"github.com/google/uuid"
)

// Uploaded documents are stored whole but only this much extracted text is
// returned for prompt building.
const maxExtractedChars = 20000

type DocumentController struct {
	minio *storage.MinIOClient
}

func NewDocumentController(minio *storage.MinIOClient) *DocumentController {
	return &DocumentController{minio: minio}
}

// Upload stores a study document and extracts its text content so the view
// layer can feed it into a prompt.
func (c *DocumentController) Upload(ctx context.Context, userID uuid.UUID, filename string, r io.Reader, size int64) (*types.UploadResponse, error) {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return nil, err
	}

	contentType := "application/octet-stream"
	var text string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		contentType = "text/html"
		text, err = search.ExtractText(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	case ".txt", ".md", ".csv":
		contentType = "text/plain"
		text = string(data)
	}
	if len(text) > maxExtractedChars {
		text = text[:maxExtractedChars]
	}

	key, err := c.minio.UploadDocument(ctx, userID.String(), filename, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, err
	}

	return &types.UploadResponse{
		Filename:    filepath.Base(filename),
		Key:         key,
		TextContent: text,
		Status:      "success",
	}, nil
}
