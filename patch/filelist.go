package patch

import (
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type (
	// Manifest is the top-level patch description file. Its parent directory
	// roots the source tree; Source patterns are resolved against that root
	// and may contain globs.
	Manifest struct {
		ID           string   `yaml:"id"`
		Version      string   `yaml:"version,omitempty"`
		Name         string   `yaml:"name,omitempty"`
		Description  string   `yaml:"description,omitempty"`
		Category     string   `yaml:"category,omitempty"`
		Manufacturer string   `yaml:"manufacturer,omitempty"`
		IsInstrument bool     `yaml:"isInstrument,omitempty"`
		Source       []string `yaml:"source,flow"`
	}

	// SourceFile is one source file of a patch, loaded into memory.
	SourceFile struct {
		Path     string
		Contents []byte
	}

	// fileEntry is one file of the tree with the modification time observed
	// at the last refresh.
	fileEntry struct {
		path    string
		modTime time.Time
	}

	// FileList is the tree of virtual files rooted at the manifest's parent
	// directory, together with the parsed manifest. Refreshing it re-reads
	// the manifest and re-resolves the source patterns.
	FileList struct {
		Fs           afero.Fs
		ManifestPath string
		Root         string
		Manifest     Manifest
		files        []fileEntry
	}

	// LoadError is a manifest parse or IO failure. It carries a
	// human-readable message and never terminates anything: the façade folds
	// it into a Description stub or a failed player.
	LoadError struct {
		Message string
	}
)

func (e *LoadError) Error() string { return e.Message }

func loadErrorf(format string, args ...any) *LoadError {
	return &LoadError{Message: fmt.Sprintf(format, args...)}
}

// refresh re-reads the manifest and re-resolves the file tree. On failure
// the previous state is left in place and a *LoadError is returned.
func (l *FileList) refresh() error {
	contents, err := afero.ReadFile(l.Fs, l.ManifestPath)
	if err != nil {
		return loadErrorf("could not read manifest %v: %v", l.ManifestPath, err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(contents, &manifest); err != nil {
		return loadErrorf("could not parse manifest %v: %v", l.ManifestPath, err)
	}
	if manifest.ID == "" {
		return loadErrorf("manifest %v has no id", l.ManifestPath)
	}

	root := path.Dir(l.ManifestPath)
	files := []fileEntry{{path: l.ManifestPath, modTime: modTime(l.Fs, l.ManifestPath)}}
	for _, pattern := range manifest.Source {
		matches, err := afero.Glob(l.Fs, path.Join(root, pattern))
		if err != nil {
			return loadErrorf("bad source pattern %q in %v: %v", pattern, l.ManifestPath, err)
		}
		if len(matches) == 0 {
			return loadErrorf("no source files match %q in %v", pattern, l.ManifestPath)
		}
		sort.Strings(matches)
		for _, m := range matches {
			files = append(files, fileEntry{path: m, modTime: modTime(l.Fs, m)})
		}
	}

	l.Manifest = manifest
	l.Root = root
	l.files = files
	return nil
}

// SourceFiles loads the contents of every resolved source file, in the
// order the manifest listed them.
func (l *FileList) SourceFiles() ([]SourceFile, error) {
	sources := make([]SourceFile, 0, len(l.files))
	for _, f := range l.files[1:] { // skip the manifest itself
		contents, err := afero.ReadFile(l.Fs, f.path)
		if err != nil {
			return nil, loadErrorf("could not read source file %v: %v", f.path, err)
		}
		sources = append(sources, SourceFile{Path: f.path, Contents: contents})
	}
	return sources, nil
}

// MostRecentModificationTime is the max mtime across all files in the tree;
// zero when the tree has never been resolved.
func (l *FileList) MostRecentModificationTime() time.Time {
	var latest time.Time
	for _, f := range l.files {
		if f.modTime.After(latest) {
			latest = f.modTime
		}
	}
	return latest
}

// createDescription derives a Description from the current manifest.
func (l *FileList) createDescription() *Description {
	return &Description{
		UID:          l.Manifest.ID,
		Version:      l.Manifest.Version,
		Name:         l.Manifest.Name,
		Description:  l.Manifest.Description,
		Category:     l.Manifest.Category,
		Manufacturer: l.Manifest.Manufacturer,
		IsInstrument: l.Manifest.IsInstrument,
		ManifestPath: l.ManifestPath,
	}
}

// snapshot copies the resolved state, so a player keeps the file list it was
// compiled from even when the instance refreshes later.
func (l *FileList) snapshot() FileList {
	cp := *l
	cp.files = append([]fileEntry(nil), l.files...)
	cp.Manifest.Source = append([]string(nil), l.Manifest.Source...)
	return cp
}

func modTime(fs afero.Fs, p string) time.Time {
	if info, err := fs.Stat(p); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}
