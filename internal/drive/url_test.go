package drive

import (
	"errors"
	"testing"
)

// TestExtractFolderID covers the URL shapes users paste in.
func TestExtractFolderID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "standard folder URL",
			url:  "https://drive.google.com/drive/folders/1AbCdEfGhIjKlMnOpQrStUv",
			want: "1AbCdEfGhIjKlMnOpQrStUv",
		},
		{
			name: "folder URL with account index and query",
			url:  "https://drive.google.com/drive/u/0/folders/1AbC-dEf_GhI?usp=sharing",
			want: "1AbC-dEf_GhI",
		},
		{
			name: "open link with id param",
			url:  "https://drive.google.com/open?id=1ZyXwVuTsRqP",
			want: "1ZyXwVuTsRqP",
		},
		{
			name: "bare folder ID",
			url:  "1AbCdEfGhIjKlMnOpQrStUv",
			want: "1AbCdEfGhIjKlMnOpQrStUv",
		},
		{
			name: "surrounding whitespace",
			url:  "  https://drive.google.com/drive/folders/1AbCdEf  ",
			want: "1AbCdEf",
		},
		{
			name:    "empty string",
			url:     "",
			wantErr: true,
		},
		{
			name:    "unrelated URL",
			url:     "https://example.com/some/path",
			wantErr: true,
		},
		{
			name:    "drive URL without folder",
			url:     "https://drive.google.com/drive/my-drive",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFolderID(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrBadFolderURL) {
					t.Fatalf("ExtractFolderID(%q) error = %v, want ErrBadFolderURL", tt.url, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractFolderID(%q) error = %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("ExtractFolderID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
