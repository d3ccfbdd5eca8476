// SPDX-License-Identifier: MPL-2.0

package gexmod

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// DefaultOwner is prefixed to repository references without an owner.
	DefaultOwner = "Rafostar"
	// DefaultVersion marks the default branch.
	DefaultVersion = "master"
	// ShortVersionLength is the length versions are truncated to.
	ShortVersionLength = 7
)

// segmentPattern accepts one lowercased path segment of a coordinate.
var segmentPattern = regexp.MustCompile(`^[a-z0-9_][a-z0-9._+-]*$`)

type (
	// Coordinate identifies one version of a remote module.
	// Construct it through CoordinateDefaults so it is normalized.
	Coordinate struct {
		Owner   string
		Repo    string
		Version string
	}

	// CoordinateDefaults holds the normalization settings for coordinates.
	CoordinateDefaults struct {
		Owner         string
		Version       string
		VersionLength int
	}

	// InvalidCoordinateError is returned when a coordinate reference cannot be
	// normalized into owner/repo/version.
	InvalidCoordinateError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid module coordinate %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidCoordinate so callers can use errors.Is.
func (e *InvalidCoordinateError) Unwrap() error { return ErrInvalidCoordinate }

// DefaultCoordinateDefaults returns the stock normalization settings.
func DefaultCoordinateDefaults() CoordinateDefaults {
	return CoordinateDefaults{
		Owner:         DefaultOwner,
		Version:       DefaultVersion,
		VersionLength: ShortVersionLength,
	}
}

// New builds a coordinate from a repository reference ("owner/repo" or a bare
// "repo") and a version.
func (d CoordinateDefaults) New(repo, version string) (Coordinate, error) {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return Coordinate{}, &InvalidCoordinateError{Value: repo, Reason: "empty repository"}
	}

	var owner, name string
	switch parts := strings.Split(repo, "/"); len(parts) {
	case 1:
		owner, name = d.Owner, parts[0]
	case 2:
		owner, name = parts[0], parts[1]
	default:
		return Coordinate{}, &InvalidCoordinateError{Value: repo, Reason: "expected owner/repo"}
	}

	c := Coordinate{
		Owner:   strings.ToLower(owner),
		Repo:    strings.ToLower(name),
		Version: d.NormalizeVersion(version),
	}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Parse accepts "repo", "owner/repo" or "owner/repo/version".
func (d CoordinateDefaults) Parse(ref string) (Coordinate, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(ref), "/"), "/")
	switch len(parts) {
	case 1, 2:
		return d.New(strings.Join(parts, "/"), "")
	case 3:
		return d.New(parts[0]+"/"+parts[1], parts[2])
	default:
		return Coordinate{}, &InvalidCoordinateError{Value: ref, Reason: "expected owner/repo[/version]"}
	}
}

// ForSource synthesizes a coordinate for a dependency that only declares an
// explicit source URL: the URL host stands in for the owner and the
// dependency name for the repository.
func (d CoordinateDefaults) ForSource(src, name, version string) (Coordinate, error) {
	u, err := url.Parse(src)
	if err != nil || u.Hostname() == "" {
		return Coordinate{}, &InvalidCoordinateError{Value: src, Reason: "source is not an absolute URL"}
	}
	return d.New(u.Hostname()+"/"+name, version)
}

// NormalizeVersion lowercases version, maps "" to the default branch and
// truncates long versions.
func (d CoordinateDefaults) NormalizeVersion(version string) string {
	version = strings.ToLower(strings.TrimSpace(version))
	if version == "" {
		return strings.ToLower(d.Version)
	}
	if d.VersionLength > 0 && len(version) > d.VersionLength {
		return version[:d.VersionLength]
	}
	return version
}

// Validate checks that every segment is a single safe path element.
func (c Coordinate) Validate() error {
	for _, seg := range c.Segments() {
		if !segmentPattern.MatchString(seg) {
			return &InvalidCoordinateError{Value: c.String(), Reason: fmt.Sprintf("invalid segment %q", seg)}
		}
	}
	return nil
}

// String returns the canonical owner/repo/version form.
func (c Coordinate) String() string {
	return c.Owner + "/" + c.Repo + "/" + c.Version
}

// RepoRef returns owner/repo.
func (c Coordinate) RepoRef() string { return c.Owner + "/" + c.Repo }

// Segments returns owner, repo and version in path order.
func (c Coordinate) Segments() []string {
	return []string{c.Owner, c.Repo, c.Version}
}

// IsZero reports whether c is the zero Coordinate.
func (c Coordinate) IsZero() bool { return c == Coordinate{} }
