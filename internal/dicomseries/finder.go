package dicomseries

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// dicomExtensions are common DICOM file extensions
var dicomExtensions = map[string]bool{
	".dcm":   true,
	".dicom": true,
}

// excludedNames are filenames to skip
var excludedNames = map[string]bool{
	"DICOMDIR":    true,
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

// excludedDirs are directory names to skip entirely
var excludedDirs = map[string]bool{
	".git":        true,
	"__pycache__": true,
	".idea":       true,
	".vscode":     true,
}

// FindObjects finds candidate DICOM files under root, sorted by path. The
// sorted order defines "first encountered" for series tie-breaking, which
// keeps selection deterministic across filesystems.
func FindObjects(root string) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if info.IsDir() {
			if excludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if excludedNames[info.Name()] {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if dicomExtensions[ext] || hasDicomMagicBytes(path) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.Walk(root, walkFn); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// hasDicomMagicBytes checks for "DICM" at byte offset 128.
func hasDicomMagicBytes(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 132)
	if n, err := io.ReadFull(file, header); err != nil || n < 132 {
		return false
	}
	return string(header[128:132]) == "DICM"
}
