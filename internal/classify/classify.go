// Package classify decides what media kind a remote file is, from its
// MIME type and filename extension alone. No I/O.
package classify

import (
	"path"
	"strings"

	"github.com/ontahood/drivefetch/internal/models"
)

// Extension fallbacks for when the MIME type is absent or generic
// (application/octet-stream is common on camera uploads).
var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
	"tif": true, "tiff": true, "bmp": true, "heic": true, "heif": true,
	"cr2": true, "cr3": true, "arw": true, "nef": true, "dng": true,
	"raf": true, "rw2": true,
}

var videoExts = map[string]bool{
	"mp4": true, "mov": true, "m4v": true, "mkv": true, "avi": true,
	"webm": true, "mts": true, "m2ts": true, "3gp": true, "mod": true,
	"tod": true,
}

var docExts = map[string]bool{
	"pdf": true, "txt": true, "doc": true, "docx": true, "xls": true,
	"xlsx": true, "ppt": true, "pptx": true, "csv": true, "rtf": true,
	"odt": true, "ods": true, "odp": true,
}

var docMIMEs = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/csv":        true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint": true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
}

// Kind classifies a file. The MIME type wins when it is specific;
// the extension is only consulted as a fallback.
func Kind(mimeType, name, fileExtension string) models.MediaKind {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	ext := extFrom(name, fileExtension)

	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.MediaImage
	case strings.HasPrefix(mime, "video/"):
		return models.MediaVideo
	case docMIMEs[mime]:
		return models.MediaDoc
	}

	switch {
	case imageExts[ext]:
		return models.MediaImage
	case videoExts[ext]:
		return models.MediaVideo
	case docExts[ext]:
		return models.MediaDoc
	}

	return models.MediaOther
}

// extFrom prefers the Drive-reported extension over parsing the name.
func extFrom(name, fileExtension string) string {
	if fileExtension != "" {
		return strings.ToLower(fileExtension)
	}
	ext := path.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
