package archive

import (
	"archive/tar"
	"os"
	"path"
	"strings"
	"time"
)

// MemberType classifies an archive entry.
type MemberType string

const (
	TypeFile     MemberType = "file"
	TypeDir      MemberType = "dir"
	TypeSymlink  MemberType = "symlink"
	TypeHardlink MemberType = "hardlink"
	TypeOther    MemberType = "other"
)

// Member is one entry of a tar stream.
type Member struct {
	Name     string // name as stored in the archive
	Path     string // Name with the wrapper prefix removed, slash separated
	Type     MemberType
	Mode     os.FileMode
	Size     int64
	Linkname string
	ModTime  time.Time
}

func newMember(hdr *tar.Header) Member {
	m := Member{
		Name:     hdr.Name,
		Mode:     os.FileMode(hdr.Mode).Perm(),
		Size:     hdr.Size,
		Linkname: hdr.Linkname,
		ModTime:  hdr.ModTime,
	}
	switch hdr.Typeflag {
	case tar.TypeReg:
		m.Type = TypeFile
	case tar.TypeDir:
		m.Type = TypeDir
	case tar.TypeSymlink:
		m.Type = TypeSymlink
	case tar.TypeLink:
		m.Type = TypeHardlink
	default:
		m.Type = TypeOther
	}
	return m
}

// WrapperPrefix returns the first path segment of name, which archive
// services use as a synthetic top-level directory.
func WrapperPrefix(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return name
}

// StripPrefix removes the wrapper prefix and its separator from name.
// It reports false when the result is empty, absolute, outside the wrapper,
// or contains a ".." segment; such members must not be extracted.
func StripPrefix(name, prefix string) (string, bool) {
	if !strings.HasPrefix(name, prefix+"/") {
		return "", false
	}

	rel := strings.TrimSuffix(name[len(prefix)+1:], "/")
	if rel == "" || strings.HasPrefix(rel, "/") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", false
		}
	}
	if cleaned := path.Clean(rel); cleaned == "." {
		return "", false
	}
	return rel, true
}
