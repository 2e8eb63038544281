package catalog

import (
	"net/url"
	"strings"
)

// NormalizeGitURL reduces a git repository reference to the canonical
// https://<host>/<owner>/<repo> form. scp-style (git@host:owner/repo) and
// ssh:// forms are converted, a trailing .git and a leading www. are
// stripped, and path segments beyond owner/repo are dropped. An empty input
// normalizes to the empty string; an input whose owner/repo cannot be
// determined is returned unchanged.
func NormalizeGitURL(raw string) string {
	if raw == "" {
		return ""
	}
	if canonical, ok := CanonicalGitURL(raw); ok {
		return canonical
	}
	return raw
}

// CanonicalGitURL reports the canonical https form of a git repository
// reference and whether one could be determined. Only the canonical form is
// suitable as a map key.
func CanonicalGitURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	switch {
	case strings.HasPrefix(s, "git@"):
		// scp syntax: git@host:owner/repo
		host, path, ok := strings.Cut(strings.TrimPrefix(s, "git@"), ":")
		if !ok {
			return "", false
		}
		s = "https://" + host + "/" + strings.TrimPrefix(path, "/")
	case strings.HasPrefix(s, "ssh://"):
		s = "https://" + strings.TrimPrefix(strings.TrimPrefix(s, "ssh://"), "git@")
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Host == "" {
		// Scheme-less references like github.com/owner/repo
		u, err = url.Parse("https://" + s)
		if err != nil || !strings.Contains(u.Host, ".") {
			return "", false
		}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", false
	}

	return "https://" + host + "/" + segments[0] + "/" + segments[1], true
}
