// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// DefaultLatestURL redirects to the page of the newest gex release.
	DefaultLatestURL = "https://github.com/Rafostar/gex/releases/latest"

	// DefaultTimeout bounds a single check.
	DefaultTimeout = 10 * time.Second

	defaultUserAgent = "gex"

	// maxDrainBytes is how much of a response body is read before closing it.
	maxDrainBytes = 64 << 10
)

const (
	// StatusUpToDate means the running version is the latest one.
	StatusUpToDate Status = iota
	// StatusAvailable means a different release was published.
	StatusAvailable
	// StatusIncomparable means the versions cannot be compared, so no update
	// is offered.
	StatusIncomparable
)

// ErrNoRelease is returned when the latest release URL did not resolve to a tag.
var ErrNoRelease = errors.New("no release tag in redirect target")

type (
	// Status is the outcome of comparing the running version with a release tag.
	Status int

	// Check is the result of a release check.
	Check struct {
		Current string
		Latest  string
		Status  Status
		// Message is a human-readable summary.
		Message string
	}

	// Checker queries the latest release redirect.
	Checker struct {
		httpClient *http.Client
		latestURL  string
		userAgent  string
		timeout    time.Duration
		current    string
	}

	// CheckerOption configures a Checker during construction.
	CheckerOption func(*Checker)
)

func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusAvailable:
		return "available"
	case StatusIncomparable:
		return "incomparable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// WithHTTPClient sets a custom HTTP client. It must follow redirects.
func WithHTTPClient(c *http.Client) CheckerOption {
	return func(ch *Checker) {
		ch.httpClient = c
	}
}

// WithLatestURL overrides the latest release URL, primarily for test servers.
func WithLatestURL(u string) CheckerOption {
	return func(ch *Checker) {
		if u != "" {
			ch.latestURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) CheckerOption {
	return func(ch *Checker) {
		if ua != "" {
			ch.userAgent = ua
		}
	}
}

// WithTimeout bounds each check. Zero disables the bound.
func WithTimeout(d time.Duration) CheckerOption {
	return func(ch *Checker) {
		ch.timeout = d
	}
}

// NewChecker returns a Checker for the running version current.
func NewChecker(current string, opts ...CheckerOption) *Checker {
	c := &Checker{
		httpClient: http.DefaultClient,
		latestURL:  DefaultLatestURL,
		userAgent:  defaultUserAgent,
		timeout:    DefaultTimeout,
		current:    current,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest resolves the latest release tag.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.latestURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("checking latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("checking latest release: unexpected status %d", resp.StatusCode)
	}

	final := resp.Request.URL
	tag, err := tagFromURL(final)
	if err != nil {
		return "", err
	}
	if start, perr := url.Parse(c.latestURL); perr == nil && start.Path == final.Path {
		return "", fmt.Errorf("%w: %s was not redirected", ErrNoRelease, c.latestURL)
	}
	return tag, nil
}

// Check resolves the latest tag and compares it with the running version.
func (c *Checker) Check(ctx context.Context) (*Check, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	status := Compare(c.current, latest)

	check := &Check{Current: c.current, Latest: latest, Status: status}
	switch status {
	case StatusAvailable:
		check.Message = fmt.Sprintf("gex %s is available (running %s)", latest, c.current)
	case StatusUpToDate:
		check.Message = fmt.Sprintf("gex %s is the latest release", c.current)
	default:
		check.Message = fmt.Sprintf("cannot compare running version %q with release %q", c.current, latest)
	}
	return check, nil
}

// FindUpdate reports the latest tag and whether it should be installed.
func (c *Checker) FindUpdate(ctx context.Context) (string, bool, error) {
	check, err := c.Check(ctx)
	if err != nil {
		return "", false, err
	}
	return check.Latest, check.Status == StatusAvailable, nil
}

// Compare decides whether latest is an update for current. A leading "v" is
// ignored on both sides. Tokens of different length cannot be compared. When
// both are semantic versions an older latest is not offered.
func Compare(current, latest string) Status {
	cur := strings.TrimPrefix(strings.TrimSpace(current), "v")
	lat := strings.TrimPrefix(strings.TrimSpace(latest), "v")

	switch {
	case cur == "" || lat == "" || len(cur) != len(lat):
		return StatusIncomparable
	case cur == lat:
		return StatusUpToDate
	}

	if semver.IsValid("v"+cur) && semver.IsValid("v"+lat) && semver.Compare("v"+lat, "v"+cur) < 0 {
		return StatusUpToDate
	}
	return StatusAvailable
}

func tagFromURL(u *url.URL) (string, error) {
	tag := path.Base(strings.TrimRight(u.Path, "/"))
	if tag == "" || tag == "." || tag == "/" || tag == "latest" {
		return "", fmt.Errorf("%w: %s", ErrNoRelease, u.Redacted())
	}
	return tag, nil
}
