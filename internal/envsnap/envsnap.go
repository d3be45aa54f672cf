// Package envsnap captures the build/release environment of a test run once,
// at run start, as an ordered list of suite-level properties.
package envsnap

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/robotomize/go-rpcjunit/internal/junit"
)

// Unknown is recorded for a variable that is not set when the run starts.
const Unknown = "Unknown"

var ErrUnknownProfile = errors.New("unknown environment profile")

// Profile is a versioned, fixed enumeration of environment variable names.
type Profile struct {
	Name string
	Vars []string
}

var (
	// Release is the release/build identifier set.
	Release = Profile{
		Name: "release",
		Vars: []string{
			"BUILD_URL",
			"BUILD_NUMBER",
			"RE_JOB_ACTION",
			"RE_JOB_IMAGE",
			"RE_JOB_SCENARIO",
			"RE_JOB_BRANCH",
			"RPC_RELEASE",
			"RPC_PRODUCT_RELEASE",
			"OS_ARTIFACT_SHA",
			"PYTHON_ARTIFACT_SHA",
			"APT_ARTIFACT_SHA",
			"REPO_URL",
		},
	}

	// CI is the CI/job identifier set.
	CI = Profile{
		Name: "ci",
		Vars: []string{
			"BUILD_URL",
			"BUILD_NUMBER",
			"BUILD_ID",
			"JOB_NAME",
			"NODE_NAME",
			"RE_JOB_ACTION",
			"RE_JOB_IMAGE",
			"RE_JOB_SCENARIO",
			"RE_JOB_BRANCH",
		},
	}
)

// Profiles lists the known profiles by name.
var Profiles = map[string]Profile{
	Release.Name: Release,
	CI.Name:      CI,
}

func ProfileByName(name string) (Profile, error) {
	p, ok := Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%q: %w", name, ErrUnknownProfile)
	}

	return p, nil
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Snapshot is an immutable, ordered list of suite properties.
type Snapshot struct {
	props []junit.Property
}

// Capture reads every variable of p exactly once. A nil lookup reads the
// process environment.
func Capture(p Profile, lookup LookupFunc) Snapshot {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	props := make([]junit.Property, 0, len(p.Vars))
	for _, name := range p.Vars {
		value, ok := lookup(name)
		if !ok {
			value = Unknown
		}

		props = append(props, junit.Property{Name: name, Value: value})
	}

	return Snapshot{props: props}
}

// With returns a copy of s with one more property appended.
func (s Snapshot) With(name, value string) Snapshot {
	props := make([]junit.Property, 0, len(s.props)+1)
	props = append(props, s.props...)

	return Snapshot{props: append(props, junit.Property{Name: name, Value: value})}
}

// Properties returns a copy of the captured properties.
func (s Snapshot) Properties() []junit.Property {
	out := make([]junit.Property, len(s.props))
	copy(out, s.props)

	return out
}

func (s Snapshot) Len() int {
	return len(s.props)
}

// ReadEnvFiles parses dotenv files without touching the process environment
// and returns a lookup that prefers the process environment over the files.
func ReadEnvFiles(paths ...string) (LookupFunc, error) {
	fileEnv, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("godotenv.Read: %w", err)
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := fileEnv[key]
		return v, ok
	}, nil
}
