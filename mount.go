package arcfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrMountNotFound is returned when no mount point matches the path
	ErrMountNotFound = errors.New("no mount point found for path")
	// ErrMountExists is returned when trying to mount at an existing path
	ErrMountExists = errors.New("mount point already exists")
	// ErrInvalidMountPath is returned when the mount path is invalid
	ErrInvalidMountPath = errors.New("invalid mount path")
	// ErrNilDriver is returned when trying to mount a nil filesystem
	ErrNilDriver = errors.New("filesystem cannot be nil")
	// ErrCrossMount is returned when an operation cannot cross mount boundaries
	ErrCrossMount = errors.New("operation cannot cross mount boundaries")
)

// MountManager combines several filesystems into one tree.
// Each filesystem is mounted under a relative path; the empty path mounts a
// filesystem at the root, serving every path no other mount claims.
// Directories leading to a mount point exist implicitly.
//
// Example:
//
//	mounts := arcfs.NewMountManager()
//	mounts.Mount("", base)
//	mounts.Mount("mods/extra", extra)
//	core, _ := archive.Init(ctx, mounts)
//
//	// Served by extra as "pack.arc/readme.txt"
//	file, _ := core.File(ctx, "mods/extra/pack.arc/readme.txt")
type MountManager struct {
	mu     sync.RWMutex
	mounts map[string]FileSystem
	// sorted mount paths for longest-prefix matching
	sortedPaths []string
}

// NewMountManager creates a new mount manager instance.
func NewMountManager() *MountManager {
	return &MountManager{
		mounts: make(map[string]FileSystem),
	}
}

// Mount attaches a filesystem at the specified path.
func (m *MountManager) Mount(mountPath string, fs FileSystem) error {
	if fs == nil {
		return ErrNilDriver
	}

	mountPath, err := normalizeMountPath(mountPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.mounts[mountPath]; exists {
		return fmt.Errorf("%w: %q", ErrMountExists, mountPath)
	}

	m.mounts[mountPath] = fs
	m.updateSortedPaths()

	return nil
}

// Unmount removes the filesystem at the specified path.
func (m *MountManager) Unmount(mountPath string) error {
	mountPath, err := normalizeMountPath(mountPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.mounts[mountPath]; !exists {
		return fmt.Errorf("%w: %q", ErrMountNotFound, mountPath)
	}

	delete(m.mounts, mountPath)
	m.updateSortedPaths()

	return nil
}

// MountPaths returns all mount paths in sorted order (longest first).
func (m *MountManager) MountPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, len(m.sortedPaths))
	copy(result, m.sortedPaths)
	return result
}

// GetMount returns the filesystem mounted at the exact path.
func (m *MountManager) GetMount(mountPath string) (FileSystem, error) {
	mountPath, err := normalizeMountPath(mountPath)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	fs, exists := m.mounts[mountPath]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrMountNotFound, mountPath)
	}
	return fs, nil
}

// resolve finds the mount serving p and the path relative to it.
func (m *MountManager) resolve(op, p string) (FileSystem, string, string, error) {
	p = cleanMountPath(p)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mountPath := range m.sortedPaths {
		if mountPath == "" || p == mountPath || strings.HasPrefix(p, mountPath+"/") {
			relativePath := strings.TrimPrefix(strings.TrimPrefix(p, mountPath), "/")
			return m.mounts[mountPath], relativePath, mountPath, nil
		}
	}

	return nil, "", "", &PathError{Op: op, Path: p, Err: ErrMountNotFound}
}

// virtualChildren returns the names of the path components that lead from
// p towards a mount point below it.
func (m *MountManager) virtualChildren(p string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for mountPath := range m.mounts {
		if mountPath == "" {
			continue
		}
		remaining := mountPath
		if p != "" {
			if !strings.HasPrefix(mountPath, p+"/") {
				continue
			}
			remaining = strings.TrimPrefix(mountPath, p+"/")
		}
		name, _, _ := strings.Cut(remaining, "/")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names
}

// isMountDir reports whether p is the root, a mount point, or a directory
// leading to one. Such directories always exist and cannot be removed.
func (m *MountManager) isMountDir(p string) bool {
	p = cleanMountPath(p)
	if p == "" {
		return true
	}

	m.mu.RLock()
	_, mounted := m.mounts[p]
	m.mu.RUnlock()

	return mounted || len(m.virtualChildren(p)) > 0
}

// updateSortedPaths updates the sorted paths slice for longest-prefix matching.
// Must be called with lock held.
func (m *MountManager) updateSortedPaths() {
	paths := make([]string, 0, len(m.mounts))
	for p := range m.mounts {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		return len(paths[i]) > len(paths[j])
	})
	m.sortedPaths = paths
}

// cleanMountPath converts p to the canonical relative form.
func cleanMountPath(p string) string {
	return strings.Join(splitPath(NormalizePath(p)), string(Separator))
}

// normalizeMountPath cleans a mount path and rejects parent references.
func normalizeMountPath(p string) (string, error) {
	p = cleanMountPath(p)
	for _, segment := range splitPath(p) {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidMountPath, p)
		}
	}
	return p, nil
}

// FileExists checks if a file exists at the path.
func (m *MountManager) FileExists(ctx context.Context, filePath string) (bool, error) {
	if m.isMountDir(filePath) {
		return false, nil
	}
	fs, relativePath, _, err := m.resolve("fileexists", filePath)
	if err != nil {
		return false, nil
	}
	return fs.FileExists(ctx, relativePath)
}

// DirExists checks if a directory exists at the path.
func (m *MountManager) DirExists(ctx context.Context, dirPath string) (bool, error) {
	if m.isMountDir(dirPath) {
		return true, nil
	}
	fs, relativePath, _, err := m.resolve("direxists", dirPath)
	if err != nil {
		return false, nil
	}
	return fs.DirExists(ctx, relativePath)
}

// CreateDir creates a directory at the path.
func (m *MountManager) CreateDir(ctx context.Context, dirPath string) error {
	if m.isMountDir(dirPath) {
		return nil
	}
	fs, relativePath, _, err := m.resolve("createdir", dirPath)
	if err != nil {
		return err
	}
	return fs.CreateDir(ctx, relativePath)
}

// CreateFile creates an empty file at the path.
func (m *MountManager) CreateFile(ctx context.Context, filePath string) error {
	if m.isMountDir(filePath) {
		return &PathError{Op: "createfile", Path: filePath, Err: ErrIsDir}
	}
	fs, relativePath, _, err := m.resolve("createfile", filePath)
	if err != nil {
		return err
	}
	return fs.CreateFile(ctx, relativePath)
}

// OpenFile opens the file at the path, routing to the appropriate mount.
func (m *MountManager) OpenFile(ctx context.Context, filePath string, overwrite bool) (Stream, error) {
	if m.isMountDir(filePath) {
		return nil, &PathError{Op: "open", Path: filePath, Err: ErrIsDir}
	}
	fs, relativePath, _, err := m.resolve("open", filePath)
	if err != nil {
		return nil, err
	}
	return fs.OpenFile(ctx, relativePath, overwrite)
}

// ReadAll reads all content from the path and returns it as a byte slice.
func (m *MountManager) ReadAll(ctx context.Context, filePath string) ([]byte, error) {
	fs, relativePath, _, err := m.resolve("read", filePath)
	if err != nil {
		return nil, err
	}
	return fs.ReadAll(ctx, relativePath)
}

// Write writes content to the path, routing to the appropriate mount.
func (m *MountManager) Write(ctx context.Context, filePath string, content io.Reader) error {
	if m.isMountDir(filePath) {
		return &PathError{Op: "write", Path: filePath, Err: ErrIsDir}
	}
	fs, relativePath, _, err := m.resolve("write", filePath)
	if err != nil {
		return err
	}
	return fs.Write(ctx, relativePath, content)
}

// Delete deletes the entry at the path. Mount points and the directories
// leading to them cannot be deleted.
func (m *MountManager) Delete(ctx context.Context, filePath string) error {
	if m.isMountDir(filePath) {
		return &PathError{Op: "delete", Path: filePath, Err: ErrNotAllowed}
	}
	fs, relativePath, _, err := m.resolve("delete", filePath)
	if err != nil {
		return err
	}
	return fs.Delete(ctx, relativePath)
}

// Move moves an entry from source to destination. Within one mount the
// mount's own Move is used; across mounts only files can be moved, by
// copying the content and deleting the source.
func (m *MountManager) Move(ctx context.Context, srcPath, dstPath string) error {
	if m.isMountDir(srcPath) {
		return &PathError{Op: "move", Path: srcPath, Err: ErrNotAllowed}
	}
	if m.isMountDir(dstPath) {
		return &PathError{Op: "move", Path: dstPath, Err: ErrExist}
	}

	srcFS, srcRelative, _, err := m.resolve("move", srcPath)
	if err != nil {
		return err
	}
	dstFS, dstRelative, _, err := m.resolve("move", dstPath)
	if err != nil {
		return err
	}

	if srcFS == dstFS {
		return srcFS.Move(ctx, srcRelative, dstRelative)
	}

	isDir, err := srcFS.DirExists(ctx, srcRelative)
	if err != nil {
		return err
	}
	if isDir {
		return &PathError{Op: "move", Path: srcPath, Err: ErrCrossMount}
	}

	for _, exists := range []func(context.Context, string) (bool, error){dstFS.FileExists, dstFS.DirExists} {
		taken, err := exists(ctx, dstRelative)
		if err != nil {
			return err
		}
		if taken {
			return &PathError{Op: "move", Path: dstPath, Err: ErrExist}
		}
	}

	data, err := srcFS.ReadAll(ctx, srcRelative)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if err := dstFS.Write(ctx, dstRelative, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	if err := srcFS.Delete(ctx, srcRelative); err != nil {
		return fmt.Errorf("delete source after move: %w", err)
	}

	return nil
}

// ReadDir lists the children of a directory. Directories leading to mount
// points are merged into the listing and shadow entries of the same name.
func (m *MountManager) ReadDir(ctx context.Context, dirPath string) ([]FileInfo, error) {
	dirPath = cleanMountPath(dirPath)
	virtual := m.virtualChildren(dirPath)

	var files []FileInfo
	fs, relativePath, mountPath, err := m.resolve("readdir", dirPath)
	switch {
	case err == nil:
		infos, err := fs.ReadDir(ctx, relativePath)
		if err != nil && !(IsNotExist(err) && m.isMountDir(dirPath)) {
			return nil, err
		}
		for _, info := range infos {
			info.Path = joinPath(mountPath, info.Path)
			files = append(files, info)
		}
	case len(virtual) == 0:
		return nil, err
	}

	for _, name := range virtual {
		info := FileInfo{
			Name:  name,
			Path:  joinPath(dirPath, name),
			IsDir: true,
		}
		replaced := false
		for i := range files {
			if files[i].Name == name {
				files[i] = info
				replaced = true
				break
			}
		}
		if !replaced {
			files = append(files, info)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// Watch watches every mount that supports watching. The pattern is applied
// relative to each mount's root.
func (m *MountManager) Watch(ctx context.Context, pattern string) (ChangeToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tokens []ChangeToken
	for _, fs := range m.mounts {
		watcher, ok := fs.(CanWatch)
		if !ok {
			continue
		}
		token, err := watcher.Watch(ctx, pattern)
		if err != nil {
			// Skip mounts that fail to watch
			continue
		}
		tokens = append(tokens, token)
	}

	if len(tokens) == 0 {
		return nil, &PathError{Op: "watch", Path: pattern, Err: ErrNotSupported}
	}

	return NewCompositeChangeToken(tokens...), nil
}

// Ensure MountManager implements FileSystem and CanWatch
var (
	_ FileSystem = (*MountManager)(nil)
	_ CanWatch   = (*MountManager)(nil)
)
