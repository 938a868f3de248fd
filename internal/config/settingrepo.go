package config

import (
	"errors"
	"fmt"
	"net/url"
)

// SettingRepoScheme is the only transport accepted for the override repository.
const SettingRepoScheme = "git+ssh"

// ErrUnsupportedScheme is returned when the setting repository URL does not
// use SSH-based git transport.
var ErrUnsupportedScheme = errors.New("unsupported setting repository scheme")

// RepoRef is the parsed form of the setting_repo.url option
type RepoRef struct {
	// URL is the repository URI with the query component stripped.
	URL string
	// Ref is the branch or tag to clone; empty means the default branch.
	Ref string
	// Host is the remote host, required for host key scanning.
	Host string
	// SubPath is the directory prefix within the repository holding the
	// override content; empty means the repository root.
	SubPath string
}

// ParseRepoRef parses the setting repository configuration string.
//
// An empty string means no custom repository is configured and returns
// (nil, nil). A non-empty string must be a URI with the git+ssh scheme,
// optionally carrying "ref" and "sub_path" query parameters.
func ParseRepoRef(s string) (*RepoRef, error) {
	if s == "" {
		return nil, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid setting repository URL %q: %w", s, err)
	}
	if u.Scheme != SettingRepoScheme {
		return nil, fmt.Errorf("%w: %q (expected %s://)", ErrUnsupportedScheme, u.Scheme, SettingRepoScheme)
	}

	query := u.Query()

	stripped := *u
	stripped.RawQuery = ""
	stripped.Fragment = ""

	return &RepoRef{
		URL:     stripped.String(),
		Ref:     query.Get("ref"),
		Host:    u.Host,
		SubPath: query.Get("sub_path"),
	}, nil
}
