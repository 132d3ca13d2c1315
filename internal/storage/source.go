package storage

import "time"

// SourceFile is one candidate file discovered under a source root. Path is
// the canonical identifier stored on chunks (an absolute path for local
// files, an s3:// form for objects); Name is the base name used for
// filename-date extraction.
type SourceFile struct {
	Path    string
	Name    string
	ModTime time.Time
}
