package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PhotoServer creates a handler serving converted member photos from the
// photo directory. it expects to be mounted at <publicPrefix>/* and refuses
// any path that resolves outside the directory.
func PhotoServer(publicPrefix, photoDir string) http.HandlerFunc {
	cleanPhotoDir := filepath.Clean(photoDir)
	routePrefix := strings.TrimSuffix(publicPrefix, "/") + "/"
	log.Printf("Serving photos for '%s*' from directory: %s", routePrefix, cleanPhotoDir)

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)
		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid photo path", http.StatusBadRequest)
			return
		}

		requestedPath := filepath.Join(cleanPhotoDir, relativePath)
		cleanedPath := filepath.Clean(requestedPath)

		if !strings.HasPrefix(cleanedPath, cleanPhotoDir) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("SECURITY: Attempted photo access outside photo directory: Request='%s', Resolved='%s'", r.URL.Path, cleanedPath)
			return
		}

		if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("Error stating photo file %s: %v", cleanedPath, err)
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedPath)
	}
}
