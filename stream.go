package arcfs

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/afero/mem"
)

// archiveStream buffers the content of one archive file in memory.
// Writes reach the archive only on Flush or Close; Flush can be called any
// number of times.
type archiveStream struct {
	ctx    context.Context
	node   *node
	buf    *mem.File
	closed bool
}

var _ Stream = (*archiveStream)(nil)

func newArchiveStream(ctx context.Context, n *node, overwrite bool) (*archiveStream, error) {
	s := &archiveStream{
		ctx:  ctx,
		node: n,
		buf:  mem.NewFileHandle(mem.CreateFile(n.path)),
	}

	if overwrite {
		return s, nil
	}

	data, err := n.core.archives.ReadFileBytes(ctx, n.file)
	if err != nil {
		return nil, err
	}
	if _, err := s.buf.Write(data); err != nil {
		return nil, WrapPathErr("open", n.path, err)
	}
	if _, err := s.buf.Seek(0, io.SeekStart); err != nil {
		return nil, WrapPathErr("open", n.path, err)
	}

	return s, nil
}

func (s *archiveStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.buf.Read(p)
}

func (s *archiveStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.buf.Write(p)
}

func (s *archiveStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.buf.Seek(offset, whence)
}

// Flush writes the whole buffer back as the file's new content and rewinds
// the buffer.
func (s *archiveStream) Flush() error {
	if s.closed {
		return ErrClosed
	}

	n := s.node
	if _, err := s.buf.Seek(0, io.SeekStart); err != nil {
		return WrapPathErr("flush", n.path, err)
	}
	data, err := io.ReadAll(s.buf)
	if err != nil {
		return WrapPathErr("flush", n.path, err)
	}
	if _, err := s.buf.Seek(0, io.SeekStart); err != nil {
		return WrapPathErr("flush", n.path, err)
	}

	dir, err := n.parent.mustContainer(s.ctx)
	if err != nil {
		return err
	}
	if _, err := n.core.archives.WriteFileBytes(s.ctx, dir, n.name(), data, false); err != nil {
		return err
	}

	// The record may have been replaced by the write.
	n.file = nil
	if _, err := n.lookup(s.ctx); err != nil {
		return err
	}

	n.core.logger.Debug("flushed archive file",
		slog.String("path", n.path),
		slog.Int("bytes", len(data)))

	return nil
}

// Close flushes and releases the buffer. The buffer is released even when
// the flush fails.
func (s *archiveStream) Close() error {
	if s.closed {
		return nil
	}
	err := s.Flush()
	s.closed = true
	if cerr := s.buf.Close(); err == nil {
		err = cerr
	}
	return err
}
