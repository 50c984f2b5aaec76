// arcfs is a command line front end over a directory tree that may contain
// archive containers. Paths cross into archives transparently:
//
//	arcfs ls data/backup.arc/photos
//	echo hello | arcfs put data/backup.arc/notes/today.txt
//
// Configuration is read from ARCFS_* environment variables and can be
// overridden with flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/gobeaver/arcfs"
	"github.com/gobeaver/arcfs/driver/archive"
	_ "github.com/gobeaver/arcfs/driver/local"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// errUsage is returned for malformed command lines.
var errUsage = errors.New("usage error")

type command struct {
	name    string
	args    string
	summary string
	minArgs int
	run     func(ctx context.Context, app *app, args []string) error
}

var commands = []command{
	{"ls", "PATH", "list subdirectories and archives", 1, runList},
	{"tree", "PATH", "print the directory tree", 1, runTree},
	{"stat", "PATH", "show the kind and existence of a path", 1, runStat},
	{"mkdir", "PATH", "create a directory and its ancestors", 1, runMkdir},
	{"touch", "PATH", "create an empty file and its ancestors", 1, runTouch},
	{"cat", "PATH", "print file content", 1, runCat},
	{"put", "PATH [--append]", "write stdin to a file", 1, runPut},
	{"sum", "PATH [--algorithm ALG]", "print a checksum of file content", 1, runSum},
	{"find", "DIR [--name GLOB] [--depth N] [--archives]", "list files below a system directory", 1, runFind},
	{"mv", "PATH NEWNAME", "rename an entry within its parent", 2, runMove},
	{"rm", "PATH", "delete a file or system directory", 1, runRemove},
}

type app struct {
	core   *arcfs.Core
	fs     arcfs.FileSystem
	stdin  io.Reader
	stdout io.Writer
	logger *slog.Logger
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := arcfs.GetConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flagSet := pflag.NewFlagSet("arcfs", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&cfg.Driver, "driver", cfg.Driver, "filesystem backend (local, memory)")
	flagSet.StringVar(&cfg.Root, "root", cfg.Root, "root directory all paths are relative to")
	flagSet.StringVar(&cfg.ArchiveExtension, "extension", cfg.ArchiveExtension, "archive file extension")
	var mounts []string
	flagSet.StringArrayVar(&mounts, "mount", nil, "mount another directory as PATH=DIR (repeatable)")
	flagSet.BoolVar(&cfg.ReadOnly, "read-only", cfg.ReadOnly, "reject every write")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stderr, flagSet)
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cmd, ok := findCommand(rest[0])
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
	}
	if len(rest)-1 < cmd.minArgs {
		return fmt.Errorf("%w: arcfs %s %s", errUsage, cmd.name, cmd.args)
	}

	logger, err := newLogger(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	fs, err := arcfs.CreateFileSystem(cfg)
	if err != nil {
		return err
	}
	if len(mounts) > 0 {
		if fs, err = mountAll(fs, cfg, mounts); err != nil {
			return err
		}
	}
	if cfg.ReadOnly {
		fs = arcfs.NewReadOnlyFileSystem(fs, arcfs.WithWriteAttemptHandler(func(op, path string) error {
			logger.Warn("write rejected", slog.String("op", op), slog.String("path", path))
			return arcfs.ErrReadOnly
		}))
	}

	core, err := archive.Init(ctx, fs,
		archive.WithLogger(logger),
		archive.WithArchiveExtension(cfg.ArchiveExtension),
		archive.WithWatch(cfg.WatchArchives))
	if err != nil {
		return err
	}

	return cmd.run(ctx, &app{
		core:   core,
		fs:     fs,
		stdin:  stdin,
		stdout: stdout,
		logger: logger,
	}, rest[1:])
}

// mountAll places root and every PATH=DIR mount under one tree.
func mountAll(root arcfs.FileSystem, cfg *arcfs.Config, specs []string) (arcfs.FileSystem, error) {
	manager := arcfs.NewMountManager()
	if err := manager.Mount("", root); err != nil {
		return nil, err
	}

	for _, spec := range specs {
		mountPath, dir, ok := strings.Cut(spec, "=")
		if !ok || mountPath == "" || dir == "" {
			return nil, fmt.Errorf("%w: --mount %q, want PATH=DIR", errUsage, spec)
		}

		mountCfg := *cfg
		mountCfg.Driver = "local"
		mountCfg.Root = dir
		fs, err := arcfs.CreateFileSystem(&mountCfg)
		if err != nil {
			return nil, err
		}
		if err := manager.Mount(mountPath, fs); err != nil {
			return nil, err
		}
	}

	return manager, nil
}

func findCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "arcfs: browse and edit directory trees containing archives.\n\n")
	fmt.Fprintf(w, "Usage:\n  arcfs [flags] COMMAND ARGS\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-6s %-24s %s\n", cmd.name, cmd.args, cmd.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n")
	flagSet.PrintDefaults()
}

func runList(ctx context.Context, a *app, args []string) error {
	dir, err := a.core.Directory(ctx, args[0])
	if err != nil {
		return err
	}
	children, err := dir.Children(ctx)
	if err != nil {
		return err
	}
	for _, child := range children {
		fmt.Fprintf(a.stdout, "%-18s %s\n", child.Type(), child.Name())
	}
	return nil
}

func runTree(ctx context.Context, a *app, args []string) error {
	dir, err := a.core.Directory(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, dir.Path())
	return printTree(ctx, a.stdout, dir, "")
}

func printTree(ctx context.Context, w io.Writer, dir *arcfs.Directory, indent string) error {
	children, err := dir.Children(ctx)
	if err != nil {
		return err
	}
	for i, child := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		name := child.Name()
		if child.Type() == arcfs.Archive {
			name += " [archive]"
		}
		fmt.Fprintf(w, "%s%s%s\n", indent, branch, name)
		if err := printTree(ctx, w, child, indent+next); err != nil {
			return err
		}
	}
	return nil
}

func runStat(ctx context.Context, a *app, args []string) error {
	entry, err := a.core.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	exists, err := entry.Exists(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "path:   %s\nkind:   %s\nexists: %t\n", entry.Path(), entry.Kind(), exists)
	if dir, err := entry.Directory(); err == nil && dir.Type() == arcfs.ArchiveDirectory {
		fmt.Fprintf(a.stdout, "archive: %s\n", dir.ArchivePath())
	}
	return nil
}

func runMkdir(ctx context.Context, a *app, args []string) error {
	dir, err := a.core.Directory(ctx, args[0])
	if err != nil {
		return err
	}
	return dir.Create(ctx)
}

func runTouch(ctx context.Context, a *app, args []string) error {
	file, err := a.core.File(ctx, args[0])
	if err != nil {
		return err
	}
	return file.Create(ctx)
}

func runCat(ctx context.Context, a *app, args []string) error {
	file, err := a.core.File(ctx, args[0])
	if err != nil {
		return err
	}
	data, err := file.ReadAll(ctx)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}

func runPut(ctx context.Context, a *app, args []string) error {
	flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
	appendData := flagSet.Bool("append", false, "append instead of replacing the content")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("%w: arcfs put PATH [--append]", errUsage)
	}

	file, err := a.core.File(ctx, flagSet.Arg(0))
	if err != nil {
		return err
	}
	return file.Update(ctx, !*appendData, func(s arcfs.Stream) error {
		if *appendData {
			if _, err := s.Seek(0, io.SeekEnd); err != nil {
				return err
			}
		}
		n, err := io.Copy(s, a.stdin)
		a.logger.Debug("wrote file", slog.String("path", file.Path()), slog.Int64("bytes", n))
		return err
	})
}

func runSum(ctx context.Context, a *app, args []string) error {
	flagSet := pflag.NewFlagSet("sum", pflag.ContinueOnError)
	algorithm := flagSet.String("algorithm", string(arcfs.ChecksumXXHash), "checksum algorithm")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("%w: arcfs sum PATH [--algorithm ALG]", errUsage)
	}

	file, err := a.core.File(ctx, flagSet.Arg(0))
	if err != nil {
		return err
	}
	sum, err := file.Checksum(ctx, arcfs.ChecksumAlgorithm(strings.ToLower(*algorithm)))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s  %s\n", sum, file.Path())
	return nil
}

func runFind(ctx context.Context, a *app, args []string) error {
	flagSet := pflag.NewFlagSet("find", pflag.ContinueOnError)
	name := flagSet.String("name", "", "only files whose name matches the glob")
	depth := flagSet.Int("depth", 0, "descend at most this many levels (0 = unlimited)")
	archives := flagSet.Bool("archives", false, "only archive files")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("%w: arcfs find DIR [--name GLOB] [--depth N] [--archives]", errUsage)
	}

	dir := flagSet.Arg(0)
	selectors := []arcfs.FileSelector{arcfs.All()}
	if *name != "" {
		selectors = append(selectors, arcfs.Glob(*name))
	}
	if *depth > 0 {
		selectors = append(selectors, arcfs.Depth(*depth, dir))
	}
	if *archives {
		selectors = append(selectors, arcfs.Archives(a.core.Matcher()))
	}

	files, err := arcfs.ListWithSelector(ctx, a.fs, dir, arcfs.And(selectors...), true)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(a.stdout, f.Path)
	}
	return nil
}

func runMove(ctx context.Context, a *app, args []string) error {
	entry, err := a.core.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	return entry.Rename(ctx, args[1])
}

func runRemove(ctx context.Context, a *app, args []string) error {
	entry, err := a.core.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	return entry.Delete(ctx)
}
