// Package ingest enumerates input documents from the local filesystem.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/contractworks/nda-extract/constants"
	"github.com/contractworks/nda-extract/internal/common"
)

// Document is a reference to one source PDF.
type Document struct {
	Path string // absolute or caller-relative path
	Name string // base name, used for logging and output naming
}

// Stem returns the document name without its extension.
func (d Document) Stem() string {
	return strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
}

// Enumerate produces the documents to process for path. A file yields one
// document; a directory yields one per matching file directly inside it
// (non-recursive), in lexicographic order for reproducibility.
func Enumerate(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.NewAppErrorf(common.CodePathNotFound, err, "path %q", path)
		}
		return nil, common.NewAppErrorf(common.CodePathNotFound, err, "stat %q", path)
	}

	if !info.IsDir() {
		if !constants.IsAllowedExt(filepath.Ext(path)) {
			return nil, common.NewAppErrorf(common.CodeUnsupportedFileType, nil,
				"%q: extension %q is not a recognized document type", path, filepath.Ext(path))
		}
		return []Document{{Path: path, Name: filepath.Base(path)}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", path, err)
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() || isHidden(e.Name()) {
			continue
		}
		if !constants.IsAllowedExt(filepath.Ext(e.Name())) {
			continue
		}
		docs = append(docs, Document{Path: filepath.Join(path, e.Name()), Name: e.Name()})
	}
	if len(docs) == 0 {
		return nil, common.NewAppErrorf(common.CodeNoDocumentsFound, nil, "no documents in %q", path)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
