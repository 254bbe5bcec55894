package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ihblv/hairhub-server/internal/formula"
)

var (
	ErrPhotoTooLarge = errors.New("photo exceeds upload limit")
	ErrNotImage      = errors.New("photo is not an image")
	ErrEmptyPhoto    = errors.New("photo is empty")
)

// readPhoto spools an upload to a temp file, reads it back into memory once
// and sniffs its media type. The temp file is removed before returning on
// every path.
func readPhoto(src io.Reader, maxBytes int64, tempDir string) (img formula.Image, err error) {
	tmp, err := os.CreateTemp(tempDir, "hairhub-photo-*")
	if err != nil {
		return formula.Image{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && err == nil {
			err = fmt.Errorf("remove temp file: %w", rmErr)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(src, maxBytes+1))
	if err != nil {
		return formula.Image{}, fmt.Errorf("spool photo: %w", err)
	}
	if n > maxBytes {
		return formula.Image{}, ErrPhotoTooLarge
	}
	if n == 0 {
		return formula.Image{}, ErrEmptyPhoto
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return formula.Image{}, fmt.Errorf("rewind photo: %w", err)
	}
	data, err := io.ReadAll(tmp)
	if err != nil {
		return formula.Image{}, fmt.Errorf("read photo: %w", err)
	}
	mediaType := detectMIME(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return formula.Image{}, fmt.Errorf("%w: %s", ErrNotImage, mediaType)
	}
	return formula.Image{MediaType: mediaType, Data: data}, nil
}

// detectMIME tries the stdlib sniffer first and falls back to mimetype for
// formats it does not know, such as HEIC.
func detectMIME(data []byte) string {
	head := data
	if len(head) > 3072 {
		head = head[:3072]
	}
	mt := http.DetectContentType(head)
	if mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(head).String()
}
