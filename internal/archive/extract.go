// Package archive extracts gzip-compressed tarballs produced by code hosting
// services, dropping the synthetic top-level directory they wrap every member
// in and refusing members that would land outside the destination.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrUnreadable indicates the archive could not be downloaded or decoded.
	ErrUnreadable = errors.New("archive unreadable")

	// ErrUnsafeMember is returned in strict mode for a member whose path
	// would escape the destination.
	ErrUnsafeMember = errors.New("unsafe archive member")
)

// Options controls extraction behavior.
type Options struct {
	// Strict aborts extraction on the first unsafe member instead of skipping it.
	Strict bool
}

// Skipped records a member that was not extracted.
type Skipped struct {
	Member Member
	Reason string
	Unsafe bool
}

// Result summarizes an extraction.
type Result struct {
	Prefix   string
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
	Skipped  []Skipped
}

// Extract reads a gzip-compressed tar stream from r and writes its members
// under dest, in archive order, with the wrapper prefix removed.
// Files already written are left in place when an error occurs.
func Extract(r io.Reader, dest string, opts Options) (*Result, error) {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("creating destination: %w", err)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening gzip stream: %w", ErrUnreadable, err)
	}
	defer gz.Close()

	x := &extractor{
		dest:   dest,
		opts:   opts,
		tr:     tar.NewReader(gz),
		result: &Result{},
	}
	if err := x.run(); err != nil {
		return x.result, err
	}
	return x.result, nil
}

type extractor struct {
	dest      string
	opts      Options
	tr        *tar.Reader
	result    *Result
	prefixSet bool
}

func (x *extractor) run() error {
	for {
		hdr, err := x.tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading tar header: %w", ErrUnreadable, err)
		}

		// GitHub stores the commit id in a leading pax global header.
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		if !x.prefixSet {
			x.result.Prefix = WrapperPrefix(hdr.Name)
			x.prefixSet = true
		}

		m := newMember(hdr)
		rel, ok := StripPrefix(hdr.Name, x.result.Prefix)
		if !ok {
			// the wrapper directory itself
			if strings.TrimSuffix(hdr.Name, "/") == x.result.Prefix {
				continue
			}
			if err := x.skip(m, "empty, absolute or parent-relative path", true); err != nil {
				return err
			}
			continue
		}
		m.Path = rel

		if err := x.extract(m); err != nil {
			return err
		}
	}
}

func (x *extractor) skip(m Member, reason string, unsafe bool) error {
	if unsafe && x.opts.Strict {
		return fmt.Errorf("%w: %s (%s)", ErrUnsafeMember, m.Name, reason)
	}
	x.result.Skipped = append(x.result.Skipped, Skipped{Member: m, Reason: reason, Unsafe: unsafe})
	return nil
}

func (x *extractor) extract(m Member) error {
	if reason := x.checkParents(m.Path); reason != "" {
		return x.skip(m, reason, true)
	}

	target := filepath.Join(x.dest, filepath.FromSlash(m.Path))

	switch m.Type {
	case TypeDir:
		if err := removeIfSymlink(target); err != nil {
			return err
		}
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", m.Path, err)
		}
		x.result.Dirs++

	case TypeFile:
		n, err := x.writeFile(target, m)
		if err != nil {
			return err
		}
		x.result.Files++
		x.result.Bytes += n

	case TypeSymlink:
		if reason := checkLinkTarget(m.Path, m.Linkname); reason != "" {
			return x.skip(m, reason, true)
		}
		if err := x.prepare(target); err != nil {
			return err
		}
		if err := os.Symlink(m.Linkname, target); err != nil {
			return fmt.Errorf("creating symlink %s: %w", m.Path, err)
		}
		x.result.Symlinks++

	case TypeHardlink:
		src, ok := StripPrefix(m.Linkname, x.result.Prefix)
		if !ok {
			return x.skip(m, "hard link target outside wrapper directory", true)
		}
		if reason := x.checkParents(src); reason != "" {
			return x.skip(m, "hard link target "+reason, true)
		}
		srcPath := filepath.Join(x.dest, filepath.FromSlash(src))
		info, err := os.Lstat(srcPath)
		if err != nil || !info.Mode().IsRegular() {
			return x.skip(m, "hard link target is not an extracted file", false)
		}
		if err := x.prepare(target); err != nil {
			return err
		}
		if err := os.Link(srcPath, target); err != nil {
			return fmt.Errorf("creating hard link %s: %w", m.Path, err)
		}
		x.result.Files++

	default:
		return x.skip(m, "unsupported member type", false)
	}

	return nil
}

// writeFile copies the current tar entry to target.
func (x *extractor) writeFile(target string, m Member) (int64, error) {
	if err := x.prepare(target); err != nil {
		return 0, err
	}

	mode := m.Mode
	if mode == 0 {
		mode = 0644
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return 0, fmt.Errorf("creating file %s: %w", m.Path, err)
	}

	n, err := io.Copy(f, sourceReader{x.tr})
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("writing file %s: %w", m.Path, err)
	}

	if err := os.Chmod(target, mode); err != nil {
		return n, fmt.Errorf("setting mode on %s: %w", m.Path, err)
	}
	if !m.ModTime.IsZero() {
		if err := os.Chtimes(target, m.ModTime, m.ModTime); err != nil {
			return n, fmt.Errorf("setting times on %s: %w", m.Path, err)
		}
	}
	return n, nil
}

// prepare creates the parent directory of target and removes any non-directory
// entry already at target, so later members overwrite earlier ones.
func (x *extractor) prepare(target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("cannot replace directory %s", target)
	}
	return os.Remove(target)
}

// checkParents reports why rel is unsafe to write, or "" when every existing
// ancestor inside dest is a real directory.
func (x *extractor) checkParents(rel string) string {
	segs := strings.Split(rel, "/")
	cur := x.dest
	for _, seg := range segs[:len(segs)-1] {
		cur = filepath.Join(cur, seg)
		info, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			return ""
		}
		if err != nil {
			return "cannot inspect parent directory"
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "parent directory is a symlink"
		}
		if !info.IsDir() {
			return "parent is not a directory"
		}
	}
	return ""
}

// checkLinkTarget rejects symlinks pointing outside the extraction root.
// The target may only climb with leading ".." segments: a ".." after a named
// segment resolves relative to wherever that segment leads, which may be
// another symlink.
func checkLinkTarget(rel, linkname string) string {
	if linkname == "" {
		return "empty symlink target"
	}
	if path.IsAbs(linkname) || filepath.IsAbs(linkname) {
		return "absolute symlink target"
	}
	descended := false
	for _, seg := range strings.Split(linkname, "/") {
		switch seg {
		case "", ".":
		case "..":
			if descended {
				return "symlink target climbs after descending"
			}
		default:
			descended = true
		}
	}
	resolved := path.Join(path.Dir(rel), linkname)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return "symlink target escapes destination"
	}
	return ""
}

func removeIfSymlink(p string) error {
	info, err := os.Lstat(p)
	if err != nil {
		return nil
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return os.Remove(p)
	}
	return nil
}

// sourceReader tags read failures of the archive stream with ErrUnreadable,
// so they can be told apart from local write failures.
type sourceReader struct {
	r io.Reader
}

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return n, err
}
