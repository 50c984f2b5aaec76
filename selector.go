package arcfs

import (
	"context"
	"strings"

	"github.com/gobwas/glob"
)

// FileSelector filters the files visited by ListWithSelector.
//
// Example usage:
//
//	// Every archive below "mods"
//	files, err := arcfs.ListWithSelector(ctx, fs, "mods", arcfs.Archives(matcher), true)
//
//	// Text files at most two levels deep
//	selector := arcfs.And(arcfs.Glob("*.txt"), arcfs.Depth(2, ""))
//	files, err := arcfs.ListWithSelector(ctx, fs, "", selector, true)
type FileSelector interface {
	// Match returns true if the file should be included in results.
	Match(file *FileInfo) bool

	// TraverseDescendants returns true if directory descendants should be traversed.
	// Only called for directories (file.IsDir == true).
	TraverseDescendants(file *FileInfo) bool
}

// ListWithSelector lists the files below path that the selector matches.
// Directories are never part of the result; archives are files here.
func ListWithSelector(ctx context.Context, fs FileSystem, path string, selector FileSelector, recursive bool) ([]FileInfo, error) {
	if selector == nil {
		selector = All()
	}

	var results []FileInfo
	if err := listRecursive(ctx, fs, path, selector, recursive, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func listRecursive(ctx context.Context, fs FileSystem, path string, selector FileSelector, recursive bool, results *[]FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := fs.ReadDir(ctx, path)
	if err != nil {
		return err
	}

	for i := range files {
		file := &files[i]

		if file.IsDir {
			if recursive && selector.TraverseDescendants(file) {
				if err := listRecursive(ctx, fs, file.Path, selector, recursive, results); err != nil {
					return err
				}
			}
			continue
		}

		if selector.Match(file) {
			*results = append(*results, *file)
		}
	}

	return nil
}

// AllSelector matches all files and traverses all directories.
type AllSelector struct{}

func (s AllSelector) Match(file *FileInfo) bool               { return true }
func (s AllSelector) TraverseDescendants(file *FileInfo) bool { return true }

// All returns a selector that matches all files.
func All() FileSelector {
	return AllSelector{}
}

type globSelector struct {
	g glob.Glob
}

// Glob matches file names against a glob pattern. Supports *, ?, [abc],
// [a-z] and {a,b}. An invalid pattern matches nothing.
//
// Examples:
//
//	Glob("*.txt")
//	Glob("{*.png,*.jpg}")
func Glob(pattern string) FileSelector {
	g, _ := glob.Compile(pattern)
	return &globSelector{g: g}
}

func (s *globSelector) Match(file *FileInfo) bool {
	return s.g != nil && s.g.Match(file.Name)
}

func (s *globSelector) TraverseDescendants(file *FileInfo) bool {
	return true
}

type archiveSelector struct {
	matcher *ArchiveMatcher
}

// Archives matches the files the matcher marks as archives.
func Archives(matcher *ArchiveMatcher) FileSelector {
	return &archiveSelector{matcher: matcher}
}

func (s *archiveSelector) Match(file *FileInfo) bool {
	return s.matcher.Match(file.Name)
}

func (s *archiveSelector) TraverseDescendants(file *FileInfo) bool {
	return true
}

type depthSelector struct {
	maxDepth int
	basePath string
}

// Depth limits traversal to maxDepth levels below basePath.
// Depth 1 = immediate children only.
func Depth(maxDepth int, basePath string) FileSelector {
	return &depthSelector{
		maxDepth: maxDepth,
		basePath: strings.Trim(NormalizePath(basePath), "/"),
	}
}

func (s *depthSelector) getDepth(path string) int {
	rel := strings.Trim(NormalizePath(path), "/")
	switch {
	case s.basePath == "":
	case rel == s.basePath:
		rel = ""
	default:
		rel = strings.TrimPrefix(rel, s.basePath+"/")
	}
	if rel == "" {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

func (s *depthSelector) Match(file *FileInfo) bool {
	return s.getDepth(file.Path) <= s.maxDepth
}

func (s *depthSelector) TraverseDescendants(file *FileInfo) bool {
	return s.getDepth(file.Path) < s.maxDepth
}

type andSelector struct {
	selectors []FileSelector
}

// And matches only if ALL selectors match. A directory is traversed only
// if every selector agrees.
func And(selectors ...FileSelector) FileSelector {
	return &andSelector{selectors: selectors}
}

func (s *andSelector) Match(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if !sel.Match(file) {
			return false
		}
	}
	return true
}

func (s *andSelector) TraverseDescendants(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if !sel.TraverseDescendants(file) {
			return false
		}
	}
	return true
}

type orSelector struct {
	selectors []FileSelector
}

// Or matches if ANY selector matches.
func Or(selectors ...FileSelector) FileSelector {
	return &orSelector{selectors: selectors}
}

func (s *orSelector) Match(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if sel.Match(file) {
			return true
		}
	}
	return false
}

func (s *orSelector) TraverseDescendants(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if sel.TraverseDescendants(file) {
			return true
		}
	}
	return false
}

type notSelector struct {
	selector FileSelector
}

// Not inverts a selector's match result.
func Not(selector FileSelector) FileSelector {
	return &notSelector{selector: selector}
}

func (s *notSelector) Match(file *FileInfo) bool {
	return !s.selector.Match(file)
}

func (s *notSelector) TraverseDescendants(file *FileInfo) bool {
	return true
}

type funcSelector struct {
	matchFn    func(*FileInfo) bool
	traverseFn func(*FileInfo) bool
}

// FuncSelector creates a selector from a custom function.
//
// Example:
//
//	FuncSelector(func(f *arcfs.FileInfo) bool {
//	    return f.Size > 1024
//	})
func FuncSelector(fn func(*FileInfo) bool) FileSelector {
	return &funcSelector{
		matchFn:    fn,
		traverseFn: func(*FileInfo) bool { return true },
	}
}

func (s *funcSelector) Match(file *FileInfo) bool               { return s.matchFn(file) }
func (s *funcSelector) TraverseDescendants(file *FileInfo) bool { return s.traverseFn(file) }
