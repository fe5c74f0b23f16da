package build

import (
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// SyncStats counts the work one Sync performed.
type SyncStats struct {
	Copied    int
	Removed   int
	Unchanged int
}

// CanDeleteOutputPath reports whether outputPath may be synced into without
// risking the project. An output path equal to the project root or any of
// its ancestors is rejected.
func CanDeleteOutputPath(root, outputPath string) bool {
	root = filepath.Clean(root)
	out := filepath.Clean(outputPath)
	if out == root {
		return false
	}
	prefix := out
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return !strings.HasPrefix(root, prefix)
}

// Sync makes dst mirror src. Files whose size and checksum already match
// are left alone; files missing from src are removed from dst.
func Sync(src, dst string) (SyncStats, error) {
	var stats SyncStats
	want, err := listFiles(src)
	if err != nil {
		return stats, err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return stats, err
	}
	have, err := listFiles(dst)
	if err != nil {
		return stats, err
	}

	// Extraneous entries go first so a path that changed between file and
	// directory is free before copying.
	var extraneous []string
	for rel := range have {
		if _, ok := want[rel]; !ok {
			extraneous = append(extraneous, rel)
		}
	}
	for _, rel := range extraneous {
		if err := os.Remove(filepath.Join(dst, rel)); err != nil && !os.IsNotExist(err) {
			return stats, err
		}
		stats.Removed++
	}
	if err := pruneEmptyDirs(dst); err != nil {
		return stats, err
	}

	for rel, info := range want {
		from := filepath.Join(src, rel)
		to := filepath.Join(dst, rel)
		if cur, ok := have[rel]; ok && cur.Size() == info.Size() {
			same, err := sameContent(from, to)
			if err != nil {
				return stats, err
			}
			if same {
				stats.Unchanged++
				continue
			}
		}
		if fi, err := os.Lstat(to); err == nil && fi.IsDir() {
			if err := os.RemoveAll(to); err != nil {
				return stats, err
			}
		}
		if err := copyFile(from, to, info.Mode()); err != nil {
			return stats, err
		}
		stats.Copied++
	}
	return stats, nil
}

func listFiles(root string) (map[string]os.FileInfo, error) {
	files := make(map[string]os.FileInfo)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[rel] = info
		return nil
	})
	return files, err
}

func checksum(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := crc32.New(castagnoli)
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

func sameContent(a, b string) (bool, error) {
	ha, err := checksum(a)
	if err != nil {
		return false, err
	}
	hb, err := checksum(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

// pruneEmptyDirs removes directories left empty by Sync, deepest first.
func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				return err
			}
		}
	}
	return nil
}
