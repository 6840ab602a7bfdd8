package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"supplyhub/internal/database"
	"supplyhub/internal/models"
)

const (
	maxImageSize        = 5 << 20
	maxImagesPerUpload  = 5
	productImagesSubdir = "products"
)

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// parseImageFiles reads the "images" parts of a multipart request.
func parseImageFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}
	files := c.Request.MultipartForm.File["images"]
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one image is required")
	}
	if len(files) > maxImagesPerUpload {
		return nil, fmt.Errorf("at most %d images per upload", maxImagesPerUpload)
	}
	for _, file := range files {
		if err := checkImage(file); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func checkImage(file *multipart.FileHeader) error {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return fmt.Errorf("image file extension is required")
	}
	if _, ok := allowedImageExtensions[extension]; !ok {
		return fmt.Errorf("unsupported image type: %s", extension)
	}
	if file.Size > maxImageSize {
		return fmt.Errorf("image file too large (max 5MB)")
	}
	return nil
}

// saveImage writes the upload under uploadDir/products and returns the path
// stored on the product, relative to the public root.
func saveImage(file *multipart.FileHeader, uploadDir string) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	filename := uuid.NewString() + extension

	dir := filepath.Join(uploadDir, productImagesSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[UPLOAD] saveImage: failed to create directory %s: %v", dir, err)
		return "", err
	}

	fullPath := filepath.Join(dir, filename)
	log.Printf("[UPLOAD] saveImage: filename=%s ext=%s fullPath=%s", filename, extension, fullPath)

	out, err := os.Create(fullPath)
	if err != nil {
		log.Printf("[UPLOAD] saveImage: failed to create file %s: %v", fullPath, err)
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		log.Printf("[UPLOAD] saveImage: failed to open upload %s: %v", file.Filename, err)
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		log.Printf("[UPLOAD] saveImage: failed to save file %s: %v", fullPath, err)
		return "", err
	}

	return filepath.ToSlash(filepath.Join(uploadsPrefix, productImagesSubdir, filename)), nil
}

// UploadProductImages appends multipart "images" to a product the caller's
// supplier owns.
func UploadProductImages(db *mongo.Database, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products/:id/images"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Product")
		if !ok {
			return
		}

		files, err := parseImageFiles(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if _, ok := loadOwnedProduct(ctx, c, db, route, actor, id, "update"); !ok {
			return
		}

		paths := make([]string, 0, len(files))
		for _, file := range files {
			path, err := saveImage(file, uploadDir)
			if err != nil {
				for _, saved := range paths {
					_ = safeDeleteUpload(uploadDir, saved)
				}
				respondWithError(c, http.StatusInternalServerError, route, "image upload failed")
				return
			}
			paths = append(paths, path)
		}

		var updated models.Product
		err = db.Collection(database.ProductsCollection).FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{
				"$push": bson.M{"images": bson.M{"$each": paths}},
				"$set":  bson.M{"updatedAt": time.Now().UTC()},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			for _, saved := range paths {
				_ = safeDeleteUpload(uploadDir, saved)
			}
			log.Printf("[%s] [ERROR] attaching images failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		log.Printf("[UPLOAD] [INFO] %d images attached to product %s", len(paths), id.Hex())
		respondData(c, http.StatusOK, updated)
	}
}
