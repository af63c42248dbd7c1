package classify

import (
	"testing"

	"github.com/ontahood/drivefetch/internal/models"
)

// TestKind covers MIME-first classification with extension fallback.
func TestKind(t *testing.T) {
	tests := []struct {
		name string
		mime string
		file string
		ext  string
		want models.MediaKind
	}{
		{"jpeg by mime", "image/jpeg", "photo.jpg", "jpg", models.MediaImage},
		{"raw by extension only", "application/octet-stream", "IMG_0001.CR2", "CR2", models.MediaImage},
		{"heic by name", "", "IMG_0002.HEIC", "", models.MediaImage},
		{"video by mime", "video/mp4", "clip.mp4", "mp4", models.MediaVideo},
		{"avchd by extension", "application/octet-stream", "00012.MTS", "MTS", models.MediaVideo},
		{"pdf by mime", "application/pdf", "scan.pdf", "pdf", models.MediaDoc},
		{"docx by extension", "", "notes.docx", "", models.MediaDoc},
		{"spreadsheet mime", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "b.xlsx", "xlsx", models.MediaDoc},
		{"archive is other", "application/zip", "backup.zip", "zip", models.MediaOther},
		{"no hints", "", "mystery", "", models.MediaOther},

		// MIME wins over a contradicting extension.
		{"mime beats extension", "image/png", "misnamed.mp4", "mp4", models.MediaImage},
		{"video mime beats doc ext", "video/quicktime", "clip.pdf", "pdf", models.MediaVideo},

		// Workspace-native files have neither binary MIME nor extension.
		{"google doc", "application/vnd.google-apps.document", "Meeting notes", "", models.MediaOther},
		{"google sheet", "application/vnd.google-apps.spreadsheet", "Budget", "", models.MediaOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.mime, tt.file, tt.ext); got != tt.want {
				t.Errorf("Kind(%q, %q, %q) = %v, want %v", tt.mime, tt.file, tt.ext, got, tt.want)
			}
		})
	}
}
