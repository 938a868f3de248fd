package config

import (
	"errors"
	"testing"
)

func TestParseRepoRef_Empty(t *testing.T) {
	ref, err := ParseRepoRef("")
	if err != nil {
		t.Fatalf("empty string must not be an error, got %v", err)
	}
	if ref != nil {
		t.Fatalf("empty string must parse as absent, got %+v", ref)
	}
}

func TestParseRepoRef_Full(t *testing.T) {
	ref, err := ParseRepoRef("git+ssh://git.example.com/org/repo.git?ref=v2&sub_path=ops")
	if err != nil {
		t.Fatal(err)
	}

	if ref.URL != "git+ssh://git.example.com/org/repo.git" {
		t.Errorf("url must exclude the query, got %q", ref.URL)
	}
	if ref.Ref != "v2" {
		t.Errorf("expected ref v2, got %q", ref.Ref)
	}
	if ref.SubPath != "ops" {
		t.Errorf("expected sub_path ops, got %q", ref.SubPath)
	}
	if ref.Host != "git.example.com" {
		t.Errorf("expected host git.example.com, got %q", ref.Host)
	}
}

func TestParseRepoRef_Defaults(t *testing.T) {
	ref, err := ParseRepoRef("git+ssh://git.example.com/org/repo.git")
	if err != nil {
		t.Fatal(err)
	}

	if ref.Ref != "" {
		t.Errorf("ref must default to empty (default branch), got %q", ref.Ref)
	}
	if ref.SubPath != "" {
		t.Errorf("sub_path must default to empty (repo root), got %q", ref.SubPath)
	}
}

func TestParseRepoRef_UnsupportedScheme(t *testing.T) {
	for _, tc := range []struct {
		name  string
		value string
	}{
		{name: "https", value: "https://github.com/org/repo.git"},
		{name: "ssh", value: "ssh://git.example.com/org/repo.git"},
		{name: "scp-like", value: "git@github.com:org/repo.git"},
		{name: "plain string", value: "not-a-url"},
		{name: "file", value: "file:///tmp/repo"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRepoRef(tc.value)
			if !errors.Is(err, ErrUnsupportedScheme) {
				t.Fatalf("expected ErrUnsupportedScheme for %q, got %v", tc.value, err)
			}
		})
	}
}

func TestParseRepoRef_MalformedURL(t *testing.T) {
	_, err := ParseRepoRef("git+ssh://git.example.com/%zz")
	if err == nil {
		t.Fatal("expected error for malformed URL")
	}
}
