package deploy

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
)

// skipDirs are never uploaded.
var skipDirs = map[string]bool{
	".git":         true,
	".stage":       true,
	".venv":        true,
	"_examples":    true,
	"node_modules": true,
}

// skipFiles are never uploaded.
var skipFiles = map[string]bool{
	".env":      true,
	".DS_Store": true,
}

// File is one local file and its slash-separated path relative to the
// project root.
type File struct {
	Local string
	Rel   string
	Size  int64
}

// CollectFiles walks root and returns the files to upload, sorted by Rel.
func CollectFiles(root string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if skipFiles[d.Name()] || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{Local: p, Rel: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// RemoteDirs returns the remote directories needed for files under
// remoteRoot, parents before children.
func RemoteDirs(remoteRoot string, files []File) []string {
	seen := map[string]bool{remoteRoot: true}
	dirs := []string{remoteRoot}
	for _, f := range files {
		dir := path.Dir(path.Join(remoteRoot, f.Rel))
		var chain []string
		for dir != remoteRoot && dir != "." && dir != "/" && !seen[dir] {
			seen[dir] = true
			chain = append(chain, dir)
			dir = path.Dir(dir)
		}
		for i := len(chain) - 1; i >= 0; i-- {
			dirs = append(dirs, chain[i])
		}
	}
	return dirs
}
