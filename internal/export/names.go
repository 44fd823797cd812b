package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxTitleLen = 120

// CleanTitle reduces a user-supplied title to characters that are safe on an
// EDL TITLE line and in a filename. Leading and trailing dots and spaces are
// dropped so a title never becomes a hidden or relative name.
func CleanTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsControl(r):
		case titleRune(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), " .")
	if runes := []rune(cleaned); len(runes) > maxTitleLen {
		cleaned = strings.TrimRight(string(runes[:maxTitleLen]), " .")
	}
	return cleaned
}

func titleRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune(" -_.,()&+#", r)
}

// Filename is the attachment name for an export, falling back to export.<ext>.
func Filename(title, ext string) string {
	name := CleanTitle(title)
	if name == "" {
		return "export." + ext
	}
	return name + "." + ext
}

var localExts = map[string]bool{".edl": true, ".srt": true}

// LocalName turns an attachment name received from a server into a bare file
// name safe to create in the output directory. Unknown extensions become .txt.
func LocalName(attachment string) string {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(attachment, `\`, "/")))
	ext := strings.ToLower(filepath.Ext(base))
	stem := CleanTitle(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "export"
	}
	if !localExts[ext] {
		ext = ".txt"
	}
	return stem + ext
}

// OutputDir checks the directory exports are written to and returns it
// cleaned. An empty dir is the working directory.
func OutputDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return "", fmt.Errorf("output directory %q must not contain ..", dir)
		}
	}

	cleaned := filepath.Clean(dir)
	info, err := os.Stat(cleaned)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("output directory %q does not exist", dir)
	case err != nil:
		return "", fmt.Errorf("output directory %q: %w", dir, err)
	case !info.IsDir():
		return "", fmt.Errorf("output directory %q is a file", dir)
	}
	return cleaned, nil
}
