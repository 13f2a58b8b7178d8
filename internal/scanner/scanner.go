// Package scanner walks a directory tree collecting method files. It respects
// .gbfignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root
	FullPath string // Absolute path
	Format   string // yaml or json
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow file symlinks that stay within root
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Name of the ignore file (default: .gbfignore)
	Extensions      []string // File extensions to collect
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".gbfignore",
		Extensions:     []string{".yaml", ".yml", ".json"},
		DefaultExcludes: []string{
			"node_modules",
			"vendor",
			"target",
			"build",
			"out",
			"bin",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan returns the method files under root sorted by path. A root that names
// a single file is returned as is, whatever its extension.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return []FileInfo{{
			Path:     filepath.Base(absRoot),
			FullPath: absRoot,
			Format:   DetectFormat(filepath.Ext(absRoot)),
			Size:     info.Size(),
		}}, nil
	}

	rules, err := s.loadIgnoreFile(absRoot, "")
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.skipDir(d.Name()) || rules.ignored(rel, true) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnoreFile(path, rel)
			if err == nil {
				rules = append(rules, nested...)
			}
			return nil
		}

		if s.opts.SkipHidden && isHidden(d.Name()) {
			return nil
		}
		if !s.wanted(d.Name()) || rules.ignored(rel, false) {
			return nil
		}

		fi, err := s.fileInfo(absRoot, path, d)
		if err != nil {
			return nil
		}
		fi.Path = rel
		files = append(files, fi)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// fileInfo stats a regular file or a symlink allowed by the options.
func (s *Scanner) fileInfo(root, path string, d fs.DirEntry) (FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		if !s.opts.FollowSymlinks {
			return FileInfo{}, fmt.Errorf("symlink %s", path)
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return FileInfo{}, err
		}
		if r, err := filepath.EvalSymlinks(root); err == nil {
			root = r
		}
		if !strings.HasPrefix(real, root+string(filepath.Separator)) {
			return FileInfo{}, fmt.Errorf("symlink %s leaves root", path)
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	if info.IsDir() {
		return FileInfo{}, fmt.Errorf("%s is a directory", path)
	}
	return FileInfo{
		FullPath: path,
		Format:   DetectFormat(filepath.Ext(path)),
		Size:     info.Size(),
	}, nil
}

func (s *Scanner) skipDir(name string) bool {
	if s.opts.SkipHidden && isHidden(name) {
		return true
	}
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// wanted reports whether name carries one of the configured extensions.
func (s *Scanner) wanted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.opts.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// loadIgnoreFile reads the ignore file in dir, scoping its rules to base.
func (s *Scanner) loadIgnoreFile(dir, base string) (ignoreSet, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var rules ignoreSet
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, ignoreRule{base: base, pattern: ParseIgnorePattern(line)})
	}
	return rules, sc.Err()
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}

// ScanWithOptions scans a directory with custom options.
func ScanWithOptions(root string, opts Options) ([]FileInfo, error) {
	return New(opts).Scan(root)
}
