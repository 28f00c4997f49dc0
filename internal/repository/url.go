package repository

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// MaxURLLength bounds accepted repository URLs.
const MaxURLLength = 2048

const gitSuffix = ".git"

var (
	scpPattern  = regexp.MustCompile(`^[A-Za-z0-9_.-]+@[A-Za-z0-9_.-]+:[^\s]+$`)
	namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// IsRemote reports whether target looks like a clonable URL rather than a
// local path.
func IsRemote(target string) bool {
	target = strings.TrimSpace(target)
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://"} {
		if strings.HasPrefix(target, prefix) {
			return true
		}
	}
	return scpPattern.MatchString(target)
}

// ValidateURL checks that raw is an https, ssh or scp-style git URL with a
// repository path.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("repository url is required")
	}
	if len(raw) > MaxURLLength {
		return fmt.Errorf("repository url exceeds %d characters", MaxURLLength)
	}
	if strings.ContainsAny(raw, " \t\n") {
		return fmt.Errorf("repository url must not contain whitespace")
	}
	if strings.HasPrefix(raw, "-") {
		return fmt.Errorf("repository url must not start with '-'")
	}
	if scpPattern.MatchString(raw) {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid repository url: %w", err)
	}
	switch u.Scheme {
	case "https", "http", "ssh", "git":
	default:
		return fmt.Errorf("unsupported repository url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("repository url has no host")
	}
	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("repository url has no path")
	}
	return nil
}

// NameFromURL returns the last path segment of raw without a trailing .git.
func NameFromURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if i := strings.LastIndexAny(raw, "/:"); i >= 0 {
		raw = raw[i+1:]
	}
	name := strings.TrimSuffix(raw, gitSuffix)
	if name == "" || name == "." || name == ".." || !namePattern.MatchString(name) {
		return "", fmt.Errorf("cannot derive repository name from url")
	}
	return name, nil
}

// WithToken injects a GitHub token into an https URL. Other URLs are
// returned unchanged.
func WithToken(raw, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.User != nil {
		return raw
	}
	u.User = url.UserPassword("x-access-token", token)
	return u.String()
}

// Redact removes token from s.
func Redact(s, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}
