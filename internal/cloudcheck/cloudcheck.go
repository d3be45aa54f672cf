// Package cloudcheck holds the polling helpers fixtures use to wait for an
// OpenStack deployment to reach an expected state.
package cloudcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/robotomize/go-rpcjunit/internal/logging"
	"github.com/robotomize/go-rpcjunit/internal/retry"
	"github.com/robotomize/go-rpcjunit/internal/slice"
)

const subsystem = "cloudcheck"

var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrInvalidService   = errors.New("invalid service")
	ErrCommandFailed    = errors.New("command failed")
)

// DefaultRetry is the polling budget used when a caller sets none.
var DefaultRetry = retry.Seconds(10)

// PropertyGetter fetches the attributes of the object id of an OpenStack
// service such as "server" or "volume".
type PropertyGetter interface {
	Get(ctx context.Context, service, id string) (map[string]any, error)
}

// CLIGetter reads objects with "openstack <service> show" in the utility
// container.
type CLIGetter struct {
	Runner Runner
}

func (g CLIGetter) Get(ctx context.Context, service, id string) (map[string]any, error) {
	if strings.TrimSpace(service) == "" || strings.ContainsAny(service, " ;'") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidService, service)
	}

	res, err := RunOnUtility(ctx, g.Runner, fmt.Sprintf("openstack %s show %s -f json", service, id))
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		return nil, fmt.Errorf("openstack %s show %s: %w: %s", service, id, ErrCommandFailed, strings.TrimSpace(res.Stderr))
	}

	props := make(map[string]any)
	if err := json.Unmarshal([]byte(res.Stdout), &props); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return props, nil
}

type expectOptions struct {
	retry         retry.Linear
	caseSensitive bool
	onlyExtended  bool
	quiet         bool
}

type ExpectOption func(*expectOptions)

func WithRetry(l retry.Linear) ExpectOption {
	return func(o *expectOptions) {
		o.retry = l
	}
}

func CaseSensitive() ExpectOption {
	return func(o *expectOptions) {
		o.caseSensitive = true
	}
}

// OnlyExtended restricts the lookup to the "properties" map of the object.
func OnlyExtended() ExpectOption {
	return func(o *expectOptions) {
		o.onlyExtended = true
	}
}

// Quiet disables the warning logged after every mismatching attempt.
func Quiet() ExpectOption {
	return func(o *expectOptions) {
		o.quiet = true
	}
}

// ExpectProperty polls the object id until its property prop equals expected.
// Direct attributes are searched before the extended "properties" map. A
// property absent from both ends the polling with ErrPropertyNotFound.
func ExpectProperty(
	ctx context.Context, g PropertyGetter, service, id, prop, expected string, opts ...ExpectOption,
) (bool, error) {
	o := expectOptions{retry: DefaultRetry}
	for _, opt := range opts {
		opt(&o)
	}

	return o.retry.Do(
		ctx, func(ctx context.Context, attempt int) (bool, error) {
			obj, err := g.Get(ctx, service, id)
			if err != nil {
				return false, fmt.Errorf("get %s %s: %w", service, id, err)
			}

			actual, ok := lookup(obj, prop, o.onlyExtended)
			if !ok {
				return false, fmt.Errorf("%w: %q on %s %s", ErrPropertyNotFound, prop, service, id)
			}

			if actual == expected || (!o.caseSensitive && strings.EqualFold(actual, expected)) {
				return true, nil
			}

			if !o.quiet {
				logging.Warn(
					subsystem, "validation attempt #%d: %s %s property %q expected %q, actual %q",
					attempt, service, id, prop, expected, actual,
				)
			}

			return false, nil
		},
	)
}

func lookup(obj map[string]any, prop string, onlyExtended bool) (string, bool) {
	if !onlyExtended {
		if v, ok := obj[prop]; ok {
			return fmt.Sprint(v), true
		}
	}

	ext, ok := obj["properties"].(map[string]any)
	if !ok {
		return "", false
	}

	v, ok := ext[prop]
	if !ok {
		return "", false
	}

	return fmt.Sprint(v), true
}

// GetExpectedValue polls "openstack <resource> show <name>" until the
// attribute key equals expected. Output that is not a JSON object counts as
// a mismatch.
func GetExpectedValue(
	ctx context.Context, r Runner, resource, name, key, expected string, l retry.Linear,
) (bool, error) {
	cmd := fmt.Sprintf("openstack %s show %s -f json", resource, name)

	return l.Do(
		ctx, func(ctx context.Context, attempt int) (bool, error) {
			res, err := RunOnUtility(ctx, r, cmd)
			if err != nil {
				return false, err
			}

			var obj map[string]any
			if err := json.Unmarshal([]byte(res.Stdout), &obj); err != nil {
				logging.Debug(subsystem, "attempt #%d: %s: unreadable output: %v", attempt, cmd, err)
				return false, nil
			}

			v, ok := obj[key]
			return ok && fmt.Sprint(v) == expected, nil
		},
	)
}

// NameList returns the names of every resource of the given type.
func NameList(ctx context.Context, r Runner, resource string) ([]string, error) {
	res, err := RunOnUtility(ctx, r, fmt.Sprintf("openstack %s list -c Name -f value", resource))
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		return nil, fmt.Errorf("openstack %s list: %w: exit status %d", resource, ErrCommandFailed, res.ExitCode)
	}

	names := make([]string, 0)
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}

	return names, nil
}

// AssetInList polls the resource listing until name is present, or absent
// when expectPresent is false.
func AssetInList(
	ctx context.Context, r Runner, resource, name string, expectPresent bool, l retry.Linear,
) (bool, error) {
	return l.Do(
		ctx, func(ctx context.Context, attempt int) (bool, error) {
			names, err := NameList(ctx, r, resource)
			if err != nil {
				return false, err
			}

			return slice.Contains(names, name) == expectPresent, nil
		},
	)
}

// ResourceInList reports whether a resource called name shows in the JSON
// listing of its type.
func ResourceInList(ctx context.Context, r Runner, resource, name string) (bool, error) {
	res, err := RunOnUtility(ctx, r, fmt.Sprintf("openstack %s list -f json", resource))
	if err != nil {
		return false, err
	}
	if !res.Succeeded() {
		return false, fmt.Errorf("openstack %s list: %w: exit status %d", resource, ErrCommandFailed, res.ExitCode)
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(res.Stdout), &rows); err != nil {
		return false, fmt.Errorf("json.Unmarshal: %w", err)
	}

	for _, row := range rows {
		if fmt.Sprint(row["Name"]) == name {
			return true, nil
		}
	}

	return false, nil
}

// IDByName returns the id of the named resource. ok is false when the
// resource does not exist.
func IDByName(ctx context.Context, r Runner, resource, name string) (id string, ok bool, err error) {
	res, err := RunOnUtility(ctx, r, fmt.Sprintf("openstack %s show %s -f json", resource, name))
	if err != nil {
		return "", false, err
	}
	if !res.Succeeded() {
		return "", false, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(res.Stdout), &obj); err != nil {
		return "", false, fmt.Errorf("json.Unmarshal: %w", err)
	}

	v, ok := obj["id"]
	if !ok {
		return "", false, nil
	}

	return fmt.Sprint(v), true, nil
}

// Ping sends one echo request to host from the deployment host until it is
// answered or the attempts run out.
func Ping(ctx context.Context, r Runner, host string, l retry.Linear) (bool, error) {
	return ping(ctx, l, r.Run, host)
}

// PingFromUtility is Ping issued from the utility container.
func PingFromUtility(ctx context.Context, r Runner, host string, l retry.Linear) (bool, error) {
	return ping(
		ctx, l, func(ctx context.Context, cmd string) (CommandResult, error) {
			return RunOnContainer(ctx, r, UtilityContainer, cmd)
		}, host,
	)
}

func ping(ctx context.Context, l retry.Linear, run RunnerFunc, host string) (bool, error) {
	return l.Do(
		ctx, func(ctx context.Context, _ int) (bool, error) {
			res, err := run(ctx, "ping -c 1 "+host)
			if err != nil {
				return false, err
			}

			return res.Succeeded(), nil
		},
	)
}

// CinderMajorVersion returns the major version of the deployed cinder
// service, or -1 when it cannot be determined.
func CinderMajorVersion(ctx context.Context, r Runner) int {
	res, err := RunOnContainer(ctx, r, "cinder_api", "/openstack/venvs/cinder-*/bin/cinder-manage --version")
	if err != nil || !res.Succeeded() {
		return -1
	}

	v, err := semver.StrictNewVersion(strings.TrimSpace(res.Stdout))
	if err != nil {
		return -1
	}

	return int(v.Major())
}
