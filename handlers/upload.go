package handlers

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/koas-web/koasbackend/config"
	"github.com/koas-web/koasbackend/media"
)

// UploadHandler receives member photos, validates them, and hands them to
// the media processor for normalization.
type UploadHandler struct {
	Processor *media.Processor
	Cfg       config.Config
}

// resolveBaseName picks the canonical photo base name: an explicit filename
// override wins, then the configured member map, then the raw member handle.
func (h *UploadHandler) resolveBaseName(member, custom string) string {
	if custom != "" {
		return custom
	}
	if mapped, ok := h.Cfg.MemberFileMap[strings.ToLower(member)]; ok {
		return mapped
	}
	return member
}

// receiveUpload validates the multipart request and spools the photo to a
// uniquely named temp file in the photo directory. it writes the error
// response itself and returns ok=false when the request is rejected; nothing
// is written to disk in that case.
func (h *UploadHandler) receiveUpload(w http.ResponseWriter, r *http.Request) (tempPath, baseName string, ok bool) {
	// cap the body slightly above the photo limit so form fields still fit;
	// the per-file limit below is the real one
	r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxUploadBytes+1<<20)

	// keep parsing in memory: the body cap guarantees it fits, and no spool
	// file is created for a request that ends up rejected
	if err := r.ParseMultipartForm(h.Cfg.MaxUploadBytes + 1<<20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File too large. Maximum size is 10MB."})
		} else {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form"})
		}
		return "", "", false
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
		return "", "", false
	}
	defer file.Close()

	if header.Size > h.Cfg.MaxUploadBytes {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File too large. Maximum size is 10MB."})
		return "", "", false
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		log.Printf("Error reading uploaded file %s: %v", header.Filename, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read upload"})
		return "", "", false
	}
	if !media.IsAllowedUpload(header.Filename, head[:n]) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Only image files (including HEIC) are allowed"})
		return "", "", false
	}

	baseName = h.resolveBaseName(r.FormValue("member"), r.FormValue("filename"))
	if strings.TrimSpace(baseName) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing member or filename"})
		return "", "", false
	}
	if strings.ContainsAny(baseName, "/\\") || strings.Contains(baseName, "..") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid filename"})
		return "", "", false
	}

	tempPath, err = h.spoolToTemp(file, header)
	if err != nil {
		log.Printf("Error spooling upload %s: %v", header.Filename, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to store upload"})
		return "", "", false
	}
	return tempPath, baseName, true
}

// spoolToTemp writes the full upload to a uuid-named file next to the final
// photos, so the later rename stays on one filesystem.
func (h *UploadHandler) spoolToTemp(file multipart.File, header *multipart.FileHeader) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	uploadUUID, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	tempPath := filepath.Join(h.Processor.PhotoDir(), "."+uploadUUID.String()+strings.ToLower(filepath.Ext(header.Filename)))

	out, err := os.Create(tempPath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

func (h *UploadHandler) photoURL(filename string) string {
	return h.Cfg.PublicPhotoPrefix + "/" + filename
}

// PublicUpload handles the open upload endpoint used by the photo drop page.
func (h *UploadHandler) PublicUpload(w http.ResponseWriter, r *http.Request) {
	tempPath, baseName, ok := h.receiveUpload(w, r)
	if !ok {
		return
	}

	result, err := h.Processor.Process(tempPath, baseName)
	if err != nil {
		log.Printf("Image processing error: %v", err)
		os.Remove(tempPath)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process image"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "File uploaded successfully",
		"filename": result.Filename,
		"url":      h.photoURL(result.Filename),
	})
}

// AdminUpload is the session-gated variant. it additionally returns the
// path relative to the photo prefix and the photo's EXIF metadata for the
// admin panel.
func (h *UploadHandler) AdminUpload(w http.ResponseWriter, r *http.Request) {
	tempPath, baseName, ok := h.receiveUpload(w, r)
	if !ok {
		return
	}

	result, err := h.Processor.Process(tempPath, baseName)
	if err != nil {
		log.Printf("Image processing error: %v", err)
		os.Remove(tempPath)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process image"})
		return
	}

	url := h.photoURL(result.Filename)
	response := map[string]interface{}{
		"success":       true,
		"message":       "File uploaded successfully",
		"filename":      result.Filename,
		"relative_path": strings.TrimPrefix(url, "/"),
		"url":           url,
	}
	if meta, err := media.GetImageMetadata(result.Path); err == nil {
		response["metadata"] = meta
	} else {
		log.Printf("Error reading metadata for %s: %v", result.Filename, err)
	}

	writeJSON(w, http.StatusOK, response)
}

// ListPhotos returns the photo directory contents in natural order for the
// admin panel's picker.
func (h *UploadHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.Processor.ListPhotos()
	if err != nil {
		log.Printf("Error listing photos: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list photos"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"photos": photos, "count": len(photos)})
}
