package scanner

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aleister1102/folderhook/internal/common"
)

// ScanFolder lists candidate files under dir whose extension is in exts.
//
// Without recursion only direct children that are regular files are returned.
// With recursion the whole subtree is walked. Errors on sub-paths skip that path;
// an unreadable root yields a *common.EnumerationError. The result is unordered.
func ScanFolder(dir string, recursive bool, exts ExtensionSet) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, common.NewEnumerationError(dir, err)
	}
	if !info.IsDir() {
		return nil, common.NewEnumerationError(dir, common.NewError("not a directory"))
	}

	if recursive {
		return walkTree(dir, exts)
	}
	return listChildren(dir, exts)
}

func listChildren(dir string, exts ExtensionSet) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewEnumerationError(dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !exts.Matches(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isRegularFile(path, entry) {
			files = append(files, path)
		}
	}
	return files, nil
}

// walkTree walks the subtree of root. A symlinked root is resolved first,
// since WalkDir does not descend into it, and results are reported under root.
func walkTree(root string, exts ExtensionSet) ([]string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, common.NewEnumerationError(root, err)
	}

	var files []string
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == resolved {
				return common.NewEnumerationError(root, err)
			}
			// Permission denied or removed mid-walk: skip the entry.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if exts.Matches(d.Name()) && isRegularFile(path, d) {
			files = append(files, underRoot(root, resolved, path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// underRoot rewrites a path found below resolved so it sits below root again.
func underRoot(root, resolved, path string) string {
	if root == resolved {
		return path
	}
	rel, err := filepath.Rel(resolved, path)
	if err != nil {
		return path
	}
	return filepath.Join(root, rel)
}

// isRegularFile follows symlinks so a link to an image counts as a file.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
