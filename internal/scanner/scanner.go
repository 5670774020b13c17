// Package scanner discovers the template files a project could render.
//
// The scanner evaluates a brace/double-star glob such as
// "**/*.{haml,erb,mustache,builder}" over an afero file system rooted at the
// project root, normalizes every match to a types.TemplateID and drops paths
// containing an exclusion marker (mailer templates by default). Hidden
// directories are not descended into.
package scanner

import (
	"context"
	"io/fs"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/frewsxcv/template-tally/internal/config"
	"github.com/frewsxcv/template-tally/internal/errors"
	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/types"
)

var (
	// DefaultExtensions are the template extensions discovered by default.
	DefaultExtensions = config.DefaultExtensions
	// DefaultExcludeMarkers drop mailer templates, which render outside the
	// request path.
	DefaultExcludeMarkers = config.DefaultExclude
)

// Scanner enumerates template files below a root.
type Scanner struct {
	fsys       fs.FS
	extensions []string
	exclude    []string
	pattern    string
	logger     logging.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions sets the template extensions, with or without a leading dot.
func WithExtensions(extensions ...string) Option {
	return func(s *Scanner) {
		s.extensions = s.extensions[:0]
		for _, ext := range extensions {
			ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
			if ext != "" {
				s.extensions = append(s.extensions, ext)
			}
		}
	}
}

// WithExcludeMarkers sets the substrings that exclude a template identifier.
func WithExcludeMarkers(markers ...string) Option {
	return func(s *Scanner) {
		s.exclude = append([]string(nil), markers...)
	}
}

// WithLogger sets the scanner's logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger.WithComponent("scanner")
	}
}

// New creates a scanner over fsys, which must be rooted at the project root.
func New(fsys afero.Fs, opts ...Option) *Scanner {
	s := &Scanner{
		fsys:       afero.NewIOFS(fsys),
		extensions: append([]string(nil), DefaultExtensions...),
		exclude:    append([]string(nil), DefaultExcludeMarkers...),
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pattern = buildPattern(s.extensions)
	return s
}

// NewForRoot creates a read-only scanner over the OS directory root.
func NewForRoot(root string, opts ...Option) *Scanner {
	return New(afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), root)), opts...)
}

func buildPattern(extensions []string) string {
	switch len(extensions) {
	case 0:
		return ""
	case 1:
		return "**/*." + extensions[0]
	default:
		return "**/*.{" + strings.Join(extensions, ",") + "}"
	}
}

// Pattern returns the glob evaluated by Discover.
func (s *Scanner) Pattern() string {
	return s.pattern
}

// Extensions returns the template extensions the scanner looks for.
func (s *Scanner) Extensions() []string {
	return append([]string(nil), s.extensions...)
}

// Discover returns the identifiers of all template files, in enumeration
// order. Callers must not rely on the order for correctness.
func (s *Scanner) Discover(ctx context.Context) ([]types.TemplateID, error) {
	if s.pattern == "" {
		return []types.TemplateID{}, nil
	}

	templates := make([]types.TemplateID, 0, 64)
	err := doublestar.GlobWalk(s.fsys, s.pattern, func(path string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if hidden(path) {
			return nil
		}

		id := types.IdentifierFromRelative(path)
		if s.excluded(id) {
			return nil
		}

		templates = append(templates, id)
		return nil
	}, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.NewDiscoveryError("template discovery failed", err).
			WithComponent("scanner").
			WithContext("pattern", s.pattern)
	}

	s.logger.Debug(ctx, "Discovered templates", "count", len(templates), "pattern", s.pattern)
	return templates, nil
}

// Matches reports whether the root-relative path is a template Discover
// would return.
func (s *Scanner) Matches(relPath string) bool {
	if s.pattern == "" {
		return false
	}

	id := types.IdentifierFromRelative(relPath)
	rel := strings.TrimPrefix(string(id), "/")
	if hidden(rel) || s.excluded(id) {
		return false
	}

	ok, err := doublestar.Match(s.pattern, rel)
	return err == nil && ok
}

func (s *Scanner) excluded(id types.TemplateID) bool {
	for _, marker := range s.exclude {
		if marker != "" && strings.Contains(string(id), marker) {
			return true
		}
	}
	return false
}

func hidden(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, ".") && segment != "." && segment != ".." {
			return true
		}
	}
	return false
}
