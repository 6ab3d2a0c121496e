package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/middleware"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
	"go.uber.org/zap"
)

// ImageHandler serves profile, cover and gallery uploads.
type ImageHandler struct {
	images  repository.ImageRepository
	users   repository.UserRepository
	uploads uploads
	logger  *zap.Logger
}

func NewImageHandler(images repository.ImageRepository, users repository.UserRepository, uploadDir string, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{images: images, users: users, uploads: uploads{dir: uploadDir}, logger: logger}
}

// ProfilePicture handles POST /users/:id/profile-picture
func (h *ImageHandler) ProfilePicture(c *gin.Context) {
	h.setUserImage(c, "Profile picture updated", func(u *models.User) *string { return &u.ProfilePicture })
}

// CoverImage handles POST /users/:id/cover-image
func (h *ImageHandler) CoverImage(c *gin.Context) {
	h.setUserImage(c, "Cover image updated", func(u *models.User) *string { return &u.CoverImage })
}

// setUserImage stores the upload and points the selected profile column at it.
func (h *ImageHandler) setUserImage(c *gin.Context, message string, column func(*models.User) *string) {
	id, ok := pathID(c, "id", "user id")
	if !ok || !requireSelf(c, id) {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to get user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	_, url, ok := h.uploads.saveOrReject(c, h.logger)
	if !ok {
		return
	}

	*column(user) = url
	if err := h.users.Update(c.Request.Context(), *user); err != nil {
		serverError(c, h.logger, "failed to update user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "url": url})
}

// AddToGallery handles POST /users/:id/images
func (h *ImageHandler) AddToGallery(c *gin.Context) {
	id, ok := pathID(c, "id", "user id")
	if !ok || !requireSelf(c, id) {
		return
	}

	_, url, ok := h.uploads.saveOrReject(c, h.logger)
	if !ok {
		return
	}

	img, err := h.images.Add(c.Request.Context(), id, url)
	if err != nil {
		serverError(c, h.logger, "failed to add image", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Image uploaded", "image_url": img.ImageURL, "id": img.ID})
}

// Gallery handles GET /users/:id/images, newest first.
func (h *ImageHandler) Gallery(c *gin.Context) {
	id, ok := pathID(c, "id", "user id")
	if !ok {
		return
	}

	images, err := h.images.ListByUser(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to list images", err)
		return
	}
	c.JSON(http.StatusOK, images)
}

// Delete handles DELETE /images/:imageId. The row goes first; a file
// that cannot be removed afterwards is only logged.
func (h *ImageHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "imageId", "image id")
	if !ok {
		return
	}

	img, err := h.images.GetByID(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to get image", err)
		return
	}
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	if img.UserID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to delete another user's image"})
		return
	}

	if err := h.images.Delete(c.Request.Context(), id); err != nil {
		serverError(c, h.logger, "failed to delete image", err)
		return
	}
	if err := h.uploads.remove(img.ImageURL); err != nil {
		h.logger.Warn("failed to remove image file", zap.String("url", img.ImageURL), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
}

// Upload handles POST /upload-picture, a bare upload that is not
// attached to anything.
func (h *ImageHandler) Upload(c *gin.Context) {
	name, url, ok := h.uploads.saveOrReject(c, h.logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File uploaded successfully", "filename": name, "url": url})
}
