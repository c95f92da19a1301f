package replutil

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
)

type fileData struct {
	name  string
	bytes []byte
}

func readFileForUpload(path string) (fileData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileData{}, fmt.Errorf("read %s: %w", path, err)
	}
	return fileData{name: filepath.Base(path), bytes: data}, nil
}

func buildMultipartBody(fileName string, content []byte, artifactType string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if artifactType != "" {
		if err := w.WriteField("type", artifactType); err != nil {
			return nil, "", fmt.Errorf("write type field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
