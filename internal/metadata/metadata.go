package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"

	"github.com/pantheon-tools/buildflow/internal/run"
)

// FileName is the metadata file committed at the root of every build artifact.
const FileName = "build-metadata.json"

// dateFormat matches git's ISO date output.
const dateFormat = "2006-01-02 15:04:05 -0700"

// BuildMetadata records the provenance of a pushed build: where the source
// came from and which commit produced it. It is written once at push time and
// superseded, never merged, by the next push.
type BuildMetadata struct {
	URL        string `json:"url"`
	Ref        string `json:"ref"`
	SHA        string `json:"sha"`
	Comment    string `json:"comment"`
	CommitDate string `json:"commit-date"`
	BuildDate  string `json:"build-date"`
}

// FromWorkingCopy builds a metadata record from the repository at dir. The
// URL is taken from remoteName (usually "origin"), everything else from HEAD.
func FromWorkingCopy(dir, remoteName string) (*BuildMetadata, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", dir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD commit %s: %w", head.Hash(), err)
	}

	var url string
	if remote, err := repo.Remote(remoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			url = urls[0]
		}
	}

	comment, _, _ := strings.Cut(commit.Message, "\n")

	return &BuildMetadata{
		URL:        url,
		Ref:        head.Name().Short(),
		SHA:        head.Hash().String(),
		Comment:    strings.TrimSpace(comment),
		CommitDate: commit.Committer.When.Format(dateFormat),
		BuildDate:  time.Now().Format(dateFormat),
	}, nil
}

// Write persists the record as build-metadata.json in dir. Slashes in URLs
// stay unescaped so the file diffs cleanly across pushes.
func (m *BuildMetadata) Write(dir string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to marshal build metadata: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Read loads build-metadata.json from dir.
func Read(dir string) (*BuildMetadata, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var m BuildMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &m, nil
}

// FetchRemote copies build-metadata.json from a deployed environment into
// destDir over rsync and returns the parsed record. sftpHost is the
// environment's SFTP endpoint, e.g. "<env>.<site>@appserver.<env>.<site>.drush.in".
func FetchRemote(ctx context.Context, runner run.Runner, sftpHost, destDir string) (*BuildMetadata, error) {
	src := fmt.Sprintf("%s:code/%s", sftpHost, FileName)
	cmd := run.Command{
		Name: "rsync",
		Args: []string{
			"-rlz", "--size-only", "--ipv4",
			"-e", "ssh -p 2222 -o StrictHostKeyChecking=no",
			src, destDir + "/",
		},
	}
	if err := runner.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("failed to fetch %s from %s: %w", FileName, sftpHost, err)
	}
	return Read(destDir)
}
