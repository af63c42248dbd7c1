package drive

import (
	"net/url"
	"regexp"
	"strings"
)

var folderIDPattern = regexp.MustCompile(`/folders/([a-zA-Z0-9_-]+)`)

// ExtractFolderID pulls the folder ID out of a Drive folder URL.
//
// Accepted forms:
//   - https://drive.google.com/drive/folders/<id>
//   - https://drive.google.com/drive/u/0/folders/<id>?usp=sharing
//   - https://drive.google.com/open?id=<id>
//   - a bare folder ID
func ExtractFolderID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrBadFolderURL
	}

	if m := folderIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}

	if u, err := url.Parse(raw); err == nil {
		if id := strings.TrimSpace(u.Query().Get("id")); id != "" {
			return id, nil
		}
	}

	// A bare ID pasted without the URL around it.
	if !strings.ContainsAny(raw, "/?&= ") && len(raw) >= 10 {
		return raw, nil
	}

	return "", ErrBadFolderURL
}
