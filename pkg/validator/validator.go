// package validator provides the necessary utilities
// to validate extraction requests before any repository is fetched
package validator

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/storage/memory"
)

var (
	githubOrgRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
)

// Validator collects validation errors keyed by the offending field.
type Validator struct {
	Errors map[string]string
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid reports whether no errors were added.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records message for key unless key already has an error.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// CheckConstraint adds an error for key when ok is false.
func (v *Validator) CheckConstraint(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Error joins the collected errors in a stable order.
func (v *Validator) Error() string {
	keys := make([]string, 0, len(v.Errors))
	for k := range v.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, v.Errors[k]))
	}
	return strings.Join(parts, "; ")
}

// ValidateSource checks that exactly one of a repository URL or a GitHub
// organisation was provided and that it is well formed.
func ValidateSource(v *Validator, repoURL, org string) {
	v.CheckConstraint(repoURL != "" || org != "", "url", "a repository URL or an organisation must be provided")
	v.CheckConstraint(repoURL == "" || org == "", "org", "provide either a repository URL or an organisation, not both")

	if repoURL != "" {
		_, err := NormalizeGitURL(repoURL)
		v.CheckConstraint(err == nil, "url", "the URL provided is not a valid repository URL")
	}
	if org != "" {
		v.CheckConstraint(githubOrgRegex.MatchString(org), "org", "the organisation provided is not a valid GitHub organisation")
	}
}

// NormalizeGitURL takes a raw git repository URL and strips trailing slashes
// and the ".git" suffix so a repository is always stored under one key.
func NormalizeGitURL(repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil {
		return "", err
	}

	if parsedURL.Scheme != "git" && parsedURL.Scheme != "https" && parsedURL.Scheme != "file" {
		return "", fmt.Errorf("repo URL missing valid protocol scheme (https, git, file): %s", repoURL)
	}

	// https://github.com/open-sauced/pizza.git/ -> https://github.com/open-sauced/pizza
	trimmedPath := strings.TrimSuffix(parsedURL.Path, "/")
	trimmedPath = strings.TrimSuffix(trimmedPath, ".git")
	parsedURL.Path = trimmedPath

	return parsedURL.String(), nil
}

// IsReachableGitRepo lists the references of the remote, the equivalent of
// "git ls-remote", to check the repository exists and can be read.
func IsReachableGitRepo(repoURL string) error {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "source",
		URLs: []string{repoURL},
	})

	if _, err := remote.List(&git.ListOptions{}); err != nil {
		return fmt.Errorf("could not list remote repository: %w", err)
	}
	return nil
}
