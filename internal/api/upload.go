package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// URLPrefix is where the router serves UploadDir.
const URLPrefix = "/uploads"

var errNoUpload = errors.New("no image uploaded")

var allowedImageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// uploads stores multipart images on local disk under a random name.
type uploads struct {
	dir string
}

// save stores the multipart field "image". It returns errNoUpload when
// the field is missing.
func (u uploads) save(c *gin.Context) (name, url string, err error) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", "", errNoUpload
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		return "", "", fmt.Errorf("%w: unsupported file type %q", errNoUpload, ext)
	}

	name = uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(u.dir, name)); err != nil {
		return "", "", fmt.Errorf("save upload: %w", err)
	}
	return name, URLPrefix + "/" + name, nil
}

// remove deletes the file behind a URL returned by save. Only the base
// name is used, so a stored URL cannot point outside dir.
func (u uploads) remove(url string) error {
	err := os.Remove(filepath.Join(u.dir, filepath.Base(url)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// saveOrReject wraps save with the standard responses: 400 when no
// usable image was sent, 500 when writing it failed.
func (u uploads) saveOrReject(c *gin.Context, logger *zap.Logger) (name, url string, ok bool) {
	name, url, err := u.save(c)
	switch {
	case errors.Is(err, errNoUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", false
	case err != nil:
		serverError(c, logger, "failed to store upload", err)
		return "", "", false
	}
	return name, url, true
}
