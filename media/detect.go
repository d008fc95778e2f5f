package media

import (
	"net/http"
	"path/filepath"
	"strings"
)

var heicBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "hevx": true,
	"heim": true, "heis": true, "hevm": true, "hevs": true,
	"mif1": true, "msf1": true,
}

var heicExtensions = map[string]bool{".heic": true, ".heif": true}

// HasHEICSignature reports whether the leading bytes carry an ISO-BMFF ftyp
// box with a HEIC/HEIF brand. Go's content sniffing does not know the format.
func HasHEICSignature(head []byte) bool {
	if len(head) < 12 {
		return false
	}
	if string(head[4:8]) != "ftyp" {
		return false
	}
	return heicBrands[string(head[8:12])]
}

// IsAllowedUpload accepts anything that sniffs as an image, carries a
// HEIC/HEIF signature, or at least claims a HEIC extension (some phones send
// application/octet-stream for HEIC files).
func IsAllowedUpload(filename string, head []byte) bool {
	if strings.HasPrefix(http.DetectContentType(head), "image/") {
		return true
	}
	if HasHEICSignature(head) {
		return true
	}
	return heicExtensions[strings.ToLower(filepath.Ext(filename))]
}
