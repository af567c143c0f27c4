package utils

import (
	"path/filepath"
	"strings"
)

// SetupFilenames are the recognized per-folder config files, checked in
// order, first match wins.
var SetupFilenames = []string{
	"setup.yaml",
	"setup.yml",
}

// IsSetupFilename reports whether name is a recognized per-folder config file.
func IsSetupFilename(name string) bool {
	for _, each := range SetupFilenames {
		if name == each {
			return true
		}
	}
	return false
}

// DefaultFormats are the file extensions treated as uploadable media when the
// configuration does not override them.
var DefaultFormats = []string{
	".png",
	".jpg",
	".jpeg",
	".webp",
}

// NameSpacer separates an embedded UUID from the visible part of a folder name.
const NameSpacer = " "

// mimeByExtension maps supported extensions to upload content types.
var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
}

// MimeTypeFor returns the content type for a filename based on its extension.
func MimeTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
