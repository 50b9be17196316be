package retrieval

import (
	"fmt"
	"path/filepath"

	"mediamirror/internal/naming"
	"mediamirror/pkg/models"
)

// Layout maps a source and item kind to its destination directory:
// {root}/{source}[_mirror]/{kind folder}[/Previews]
type Layout struct {
	Root             string
	UseFolderSuffix  bool
	SeparatePreviews bool
}

// SourceDir returns the folder of one source. Names that could escape the
// root are rejected.
func (l Layout) SourceDir(sourceID string) (string, error) {
	name, err := naming.SafeComponent(sourceID)
	if err != nil {
		return "", fmt.Errorf("invalid source %q: %w", sourceID, err)
	}
	if l.UseFolderSuffix {
		name += FolderSuffix
	}
	return filepath.Join(l.Root, name), nil
}

// KindDir returns the folder for items of kind under sourceDir
func (l Layout) KindDir(sourceDir string, kind models.MediaKind, preview bool) string {
	dir := filepath.Join(sourceDir, kind.FolderName())
	if preview && l.SeparatePreviews {
		dir = filepath.Join(dir, PreviewFolder)
	}
	return dir
}

// Dirs lists every folder that can hold materialized items of a source.
// Each is rehydrated before a run.
func (l Layout) Dirs(sourceDir string) []string {
	dirs := make([]string, 0, 2*len(models.Kinds))
	for _, k := range models.Kinds {
		dirs = append(dirs, l.KindDir(sourceDir, k, false))
		if l.SeparatePreviews {
			dirs = append(dirs, l.KindDir(sourceDir, k, true))
		}
	}
	return dirs
}
