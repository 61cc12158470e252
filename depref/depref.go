package depref

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors returned by the parse functions.
var (
	ErrMalformed        = errors.New("malformed reference")
	ErrUnknownEcosystem = errors.New("unknown ecosystem")
	ErrEmptyPackage     = errors.New("empty package name")
	ErrEmptyVersion     = errors.New("empty version")
	ErrBadNamespace     = errors.New("invalid namespace")
	ErrEmptyEntityName  = errors.New("empty entity name")
)

// ExternalPrefix and InternalPrefix are the reference scheme prefixes.
const (
	ExternalPrefix = "external://"
	InternalPrefix = "internal://"
)

// Reference grammar patterns, exported for schema generation.
const (
	ExternalPattern  = `^external://([^/]+)/(.+)/([^/]+)$`
	InternalPattern  = `^internal://(.+)$`
	NamespacePattern = `^[a-z]([a-z0-9_-]*[a-z0-9])?$`
)

var (
	externalRE  = regexp.MustCompile(ExternalPattern)
	internalRE  = regexp.MustCompile(InternalPattern)
	namespaceRE = regexp.MustCompile(NamespacePattern)
)

// knownEcosystems are the ecosystems accepted at parse time. Business
// validation applies a narrower set; see the validate package.
var knownEcosystems = map[string]struct{}{
	"pypi":       {},
	"npm":        {},
	"golang.org": {},
	"github.com": {},
	"crates.io":  {},
	"maven":      {},
}

// External is a parsed external dependency reference
// external://<ecosystem>/<package>/<version>.
type External struct {
	Ecosystem string
	Package   string
	Version   string
}

// Internal is a parsed internal entity reference
// internal://<namespace>/<entity-path>.
type Internal struct {
	Namespace  string
	EntityPath string
}

// Kind discriminates parsed reference variants.
type Kind int

const (
	// KindNone indicates the string is not a recognized reference.
	KindNone Kind = iota
	// KindExternal indicates an external:// reference.
	KindExternal
	// KindInternal indicates an internal:// reference.
	KindInternal
)

// Ref is the tagged union produced by [Parse].
type Ref struct {
	External *External
	Internal *Internal
	Kind     Kind
}

// IsExternal reports whether s carries the external:// prefix.
func IsExternal(s string) bool {
	return strings.HasPrefix(s, ExternalPrefix)
}

// IsInternal reports whether s carries the internal:// prefix.
func IsInternal(s string) bool {
	return strings.HasPrefix(s, InternalPrefix)
}

// ValidNamespace reports whether s is a valid namespace: lowercase
// alphanumeric with interior hyphens or underscores, starting with a letter.
func ValidNamespace(s string) bool {
	return namespaceRE.MatchString(s)
}

// ParseExternal parses an external://<ecosystem>/<package>/<version>
// reference. The package segment may itself contain slashes; the version is
// the final segment.
func ParseExternal(uri string) (External, error) {
	m := externalRE.FindStringSubmatch(uri)
	if m == nil {
		return External{}, fmt.Errorf("%w: %q", ErrMalformed, uri)
	}

	ext := External{
		Ecosystem: m[1],
		Package:   m[2],
		Version:   m[3],
	}

	if _, ok := knownEcosystems[ext.Ecosystem]; !ok {
		return External{}, fmt.Errorf("%w: %q", ErrUnknownEcosystem, ext.Ecosystem)
	}

	if strings.TrimSpace(ext.Package) == "" {
		return External{}, fmt.Errorf("%w: %q", ErrEmptyPackage, uri)
	}

	if strings.TrimSpace(ext.Version) == "" {
		return External{}, fmt.Errorf("%w: %q", ErrEmptyVersion, uri)
	}

	return ext, nil
}

// ParseInternal parses an internal://<namespace>/<entity-path> reference.
// The path after the scheme must have at least two segments; the first is
// the namespace and must match the namespace pattern.
func ParseInternal(uri string) (Internal, error) {
	m := internalRE.FindStringSubmatch(uri)
	if m == nil {
		return Internal{}, fmt.Errorf("%w: %q", ErrMalformed, uri)
	}

	segments := strings.Split(m[1], "/")
	if len(segments) < 2 {
		return Internal{}, fmt.Errorf("%w: %q", ErrMalformed, uri)
	}

	in := Internal{
		Namespace:  segments[0],
		EntityPath: strings.Join(segments[1:], "/"),
	}

	if !ValidNamespace(in.Namespace) {
		return Internal{}, fmt.Errorf("%w: %q", ErrBadNamespace, in.Namespace)
	}

	if strings.TrimSpace(in.EntityPath) == "" {
		return Internal{}, fmt.Errorf("%w: %q", ErrEmptyEntityName, uri)
	}

	return in, nil
}

// Parse classifies and parses a reference string. Strings that are neither
// external:// nor internal://, or that fail to parse, yield [KindNone].
func Parse(uri string) Ref {
	switch {
	case IsExternal(uri):
		ext, err := ParseExternal(uri)
		if err != nil {
			return Ref{Kind: KindNone}
		}

		return Ref{Kind: KindExternal, External: &ext}

	case IsInternal(uri):
		in, err := ParseInternal(uri)
		if err != nil {
			return Ref{Kind: KindNone}
		}

		return Ref{Kind: KindInternal, Internal: &in}
	}

	return Ref{Kind: KindNone}
}

// BuildExternal produces the canonical external URI for the components.
func BuildExternal(ecosystem, pkg, version string) string {
	return ExternalPrefix + ecosystem + "/" + pkg + "/" + version
}

// BuildInternal produces the canonical internal URI for the components.
func BuildInternal(namespace, entityName string) string {
	return InternalPrefix + namespace + "/" + entityName
}

// PackageID returns the canonical package entity id,
// external://<ecosystem>/<package>.
func (e External) PackageID() string {
	return ExternalPrefix + e.Ecosystem + "/" + e.Package
}

// VersionID returns the canonical version entity id, which is the full URI.
func (e External) VersionID() string {
	return BuildExternal(e.Ecosystem, e.Package, e.Version)
}

// EntityID returns the canonical backend entity id,
// <namespace>/<entity-path>.
func (i Internal) EntityID() string {
	return i.Namespace + "/" + i.EntityPath
}

// URI returns the canonical internal URI.
func (i Internal) URI() string {
	return InternalPrefix + i.Namespace + "/" + i.EntityPath
}
