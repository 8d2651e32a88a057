package artifact

import "os"

const (
	defaultIndent               = "  "
	defaultFileMode os.FileMode = 0o644
	defaultDirMode  os.FileMode = 0o755
)

// Option configures a FileStore.
type Option func(*FileStore)

// WithIndent sets the indentation used for JSON artifacts.
func WithIndent(indent string) Option {
	return func(s *FileStore) {
		s.indent = indent
	}
}

// WithFileMode sets the permission bits for written artifacts.
func WithFileMode(mode os.FileMode) Option {
	return func(s *FileStore) {
		if mode != 0 {
			s.fileMode = mode
		}
	}
}

// WithDirMode sets the permission bits for created artifact directories.
func WithDirMode(mode os.FileMode) Option {
	return func(s *FileStore) {
		if mode != 0 {
			s.dirMode = mode
		}
	}
}
