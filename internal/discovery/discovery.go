// File: internal/discovery/discovery.go
// Package discovery turns scan targets (files, directories or storage URLs)
// into the list of source files handed to the analyzers.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/config"
)

// ErrNotFound is returned when a scan target does not exist.
var ErrNotFound = errors.New("scan target not found")

// SourceFile is a file selected for analysis.
type SourceFile struct {
	// Path is the name used in findings: a local path for local targets,
	// the full URL otherwise.
	Path     string
	URL      string
	Language schemas.Language
	Size     int64
}

// Discoverer walks scan targets through afs, so local paths and any
// storage URL afs understands (mem://, s3://, gs://...) are handled alike.
type Discoverer struct {
	fs         afs.Service
	logger     *zap.Logger
	maxSize    int64
	exclude    map[string]struct{}
	extensions map[string]schemas.Language
}

// New creates a Discoverer from the discovery configuration.
func New(cfg config.DiscoveryConfig, logger *zap.Logger) *Discoverer {
	return NewWithService(afs.New(), cfg, logger)
}

// NewWithService creates a Discoverer on top of an existing afs service.
func NewWithService(fs afs.Service, cfg config.DiscoveryConfig, logger *zap.Logger) *Discoverer {
	d := &Discoverer{
		fs:         fs,
		logger:     logger.Named("discovery"),
		maxSize:    cfg.MaxFileSize,
		exclude:    make(map[string]struct{}, len(cfg.ExcludeDirs)),
		extensions: make(map[string]schemas.Language),
	}
	for _, dir := range cfg.ExcludeDirs {
		d.exclude[dir] = struct{}{}
	}
	for _, ext := range cfg.PythonExtensions {
		d.extensions[strings.ToLower(ext)] = schemas.LanguagePython
	}
	for _, ext := range cfg.JSXExtensions {
		d.extensions[strings.ToLower(ext)] = schemas.LanguageJSX
	}
	return d
}

// LanguageOf returns the language selected by the file extension.
func (d *Discoverer) LanguageOf(name string) (schemas.Language, bool) {
	lang, ok := d.extensions[strings.ToLower(path.Ext(name))]
	return lang, ok
}

// Discover expands every root into source files. The result is sorted by
// path and free of duplicates. A root given as a file is taken as long as
// its extension is known, even inside an excluded directory.
func (d *Discoverer) Discover(ctx context.Context, roots []string) ([]SourceFile, error) {
	seen := make(map[string]struct{})
	var files []SourceFile

	add := func(f SourceFile) {
		if _, dup := seen[f.Path]; dup {
			return
		}
		seen[f.Path] = struct{}{}
		files = append(files, f)
	}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := d.discoverRoot(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	d.logger.Debug("Discovery finished", zap.Strings("roots", roots), zap.Int("files", len(files)))
	return files, nil
}

func (d *Discoverer) discoverRoot(ctx context.Context, root string) ([]SourceFile, error) {
	exists, err := d.fs.Exists(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", root, ErrNotFound)
	}

	object, err := d.fs.Object(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !object.IsDir() {
		if f, ok := d.accept(root, root, object.Name(), object.Size()); ok {
			return []SourceFile{f}, nil
		}
		return nil, nil
	}

	var files []SourceFile
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if info.IsDir() {
			if _, skip := d.exclude[info.Name()]; skip {
				d.logger.Debug("Skipping excluded directory", zap.String("dir", path.Join(parent, info.Name())))
				return false, nil
			}
			return true, nil
		}
		fileURL := url.Join(url.Join(baseURL, parent), info.Name())
		display := fileURL
		if isLocal(root) {
			display = filepath.Join(root, filepath.FromSlash(parent), info.Name())
		}
		if f, ok := d.accept(display, fileURL, info.Name(), info.Size()); ok {
			files = append(files, f)
		}
		return true, nil
	}
	if err := d.fs.Walk(ctx, root, visitor); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

func (d *Discoverer) accept(display, fileURL, name string, size int64) (SourceFile, bool) {
	lang, ok := d.LanguageOf(name)
	if !ok {
		return SourceFile{}, false
	}
	if d.maxSize > 0 && size > d.maxSize {
		d.logger.Info("Skipping oversized file",
			zap.String("file", display),
			zap.Int64("size_bytes", size),
			zap.Int64("max_size_bytes", d.maxSize),
		)
		return SourceFile{}, false
	}
	return SourceFile{Path: display, URL: fileURL, Language: lang, Size: size}, true
}

// ReadFile downloads the content of a discovered file.
func (d *Discoverer) ReadFile(ctx context.Context, f SourceFile) ([]byte, error) {
	content, err := d.fs.DownloadWithURL(ctx, f.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return content, nil
}

// isLocal reports whether target is a plain path rather than a URL.
func isLocal(target string) bool {
	return !strings.Contains(target, "://")
}
