package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

// gitHostTypes maps recognized git hosts to the provider type the
// hosting API expects.
var gitHostTypes = map[string]string{
	"github.com":    "github",
	"gitlab.com":    "gitlab",
	"bitbucket.org": "bitbucket",
}

// gitURLPattern matches https, git+ssh and scp-style remote URLs for
// the recognized hosts, capturing host and owner/repo.
var gitURLPattern = regexp.MustCompile(`^(?:https?://|git@|ssh://git@)?(github\.com|gitlab\.com|bitbucket\.org)[:/]([\w.-]+/[\w.-]+?)(?:\.git)?/?$`)

// GitSource is a parsed git remote: the provider type and the
// owner/name repository path.
type GitSource struct {
	Type string
	Repo string
}

// ParseGitURL parses a template repository URL into its provider type
// and owner/repo path. Unrecognized hosts or malformed paths are
// rejected.
func ParseGitURL(rawURL string) (*GitSource, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("empty repository URL")
	}

	m := gitURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, fmt.Errorf("unrecognized repository URL %q", rawURL)
	}

	host, repo := m[1], m[2]
	if strings.Count(repo, "/") != 1 {
		return nil, fmt.Errorf("repository path %q is not owner/name", repo)
	}

	return &GitSource{
		Type: gitHostTypes[host],
		Repo: repo,
	}, nil
}
