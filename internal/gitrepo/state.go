package gitrepo

import (
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Read-only queries against the working copy. Any failure collapses to the
// empty string: a directory that has never been cloned and a clone whose
// metadata cannot be read both report "no information". Callers treat that
// as "not synced" and reclone, which means a transient read failure causes a
// needless reclone rather than an error.

// RemoteOriginURL returns the URL recorded for the origin remote of the
// repository at dir, or "" if it cannot be determined.
func (c *ShellClient) RemoteOriginURL(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ""
	}

	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return ""
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// ExactTag returns the name of a tag pointing exactly at HEAD of the
// repository at dir, or "" if there is none or it cannot be determined.
func (c *ShellClient) ExactTag(dir string) string {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ""
	}

	head, err := repo.Head()
	if err != nil {
		return ""
	}

	tags, err := repo.Tags()
	if err != nil {
		return ""
	}

	var match string
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		// Annotated tags point at a tag object, not the commit.
		if tagObj, tagErr := repo.TagObject(ref.Hash()); tagErr == nil {
			target = tagObj.Target
		}
		if target == head.Hash() {
			match = ref.Name().Short()
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return ""
	}
	return match
}
