package buildinfo

import (
	"github.com/Masterminds/semver/v3"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Commit is set at build time via -ldflags.
var Commit = "unknown"

// Date is set at build time via -ldflags.
var Date = "unknown"

// Short returns a compact build identifier for UI/logging. A release
// version is printed in canonical vMAJOR.MINOR.PATCH form.
func Short() string {
	if v, err := Semver(); err == nil && v != nil {
		return "v" + v.String()
	}
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// Semver parses Version. Development builds return nil, nil.
func Semver() (*semver.Version, error) {
	if Version == "" || Version == "dev" {
		return nil, nil
	}
	return semver.NewVersion(Version)
}

// Satisfies reports whether this build meets a constraint such as
// ">= 0.3". Development builds satisfy every constraint.
func Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, err
	}
	v, err := Semver()
	if err != nil {
		return false, err
	}
	if v == nil {
		return true, nil
	}
	return c.Check(v), nil
}
