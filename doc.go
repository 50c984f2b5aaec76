// Package arcfs provides one path-addressable view over a directory tree and
// the archive containers stored in it.
//
// A path may cross from the filesystem into an archive and on into archives
// nested inside it:
//
//	saves/slot1.arc/meta/info.txt
//	mods/pack.arc/textures/extra.arc/stone.png
//
// Each segment is classified on its own. A segment whose name carries the
// archive extension (".arc" unless configured otherwise, matched
// case-insensitively, also before a further extension as in "x.arc.bak") is
// an archive. Any other segment is a file when its name has an extension and
// a directory when it has none. Once a path has entered an archive,
// everything below it stays inside.
//
// # Backends
//
// The core works against two collaborators:
//
//   - [FileSystem], the directory tree (github.com/gobeaver/arcfs/driver/local
//     over the OS or memory)
//   - [ArchiveBackend] and [ArchiveRegistry], the archive containers
//     (github.com/gobeaver/arcfs/driver/archive)
//
// archive.Init wires both into a ready [Core]:
//
//	fs, err := local.NewOS("./data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	core, err := archive.Init(ctx, fs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Entries
//
// [Core.Resolve] returns an [Entry] for any path; [Core.Directory] and
// [Core.File] return the typed views. Resolving never touches the
// filesystem, so entries can name things that do not exist yet:
//
//	file, err := core.File(ctx, "saves/slot1.arc/meta/info.txt")
//
//	// Creates "saves", the archive and "meta" first
//	err = file.Update(ctx, true, func(s arcfs.Stream) error {
//	    _, err := io.WriteString(s, "level 3")
//	    return err
//	})
//
//	data, err := file.ReadAll(ctx)
//
// Existence is never cached; every Exists call asks the backend again.
// Children of a directory are listed once per [Directory] value.
//
// Deleting an archive or a directory inside an archive is not implemented
// and fails with [ErrUnimplemented].
//
// # Streams
//
// Files inside archives are opened as in-memory buffers. Writes reach the
// archive on Flush or Close:
//
//	s, err := file.Open(ctx, false)
//	defer s.Close()
//	s.Seek(0, io.SeekEnd)
//	io.WriteString(s, "\nmore")
//
// # Filesystem Decorators
//
// [MountManager] combines several filesystems into one tree and
// [ReadOnlyFileSystem] rejects every write. Both are [FileSystem]s and can be
// handed to archive.Init:
//
//	mounts := arcfs.NewMountManager()
//	mounts.Mount("", base)
//	mounts.Mount("mods", modsFS)
//	core, err := archive.Init(ctx, arcfs.NewReadOnlyFileSystem(mounts))
//
// # Configuration
//
// [GetConfig] reads ARCFS_* environment variables. Backends register
// themselves by driver name, so a configured filesystem is one call away:
//
//	import _ "github.com/gobeaver/arcfs/driver/local"
//
//	cfg, err := arcfs.GetConfig()
//	fs, err := arcfs.CreateFileSystem(cfg)
//
// # Error Handling
//
// Errors raised by the core are [*PathError] values wrapping a sentinel:
//
//	if arcfs.IsNotExist(err) {
//	    // Handle missing entry
//	}
//
//	if arcfs.IsUnimplemented(err) {
//	    // Archive or archive directory delete
//	}
//
//	var pathErr *arcfs.PathError
//	if errors.As(err, &pathErr) {
//	    fmt.Printf("%s %s: %v\n", pathErr.Op, pathErr.Path, pathErr.Err)
//	}
//
// Backend failures are passed through unchanged.
package arcfs
