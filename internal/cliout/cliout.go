// Package cliout parses the text printed by OpenStack and Swift command line
// tools on a deployment host.
package cliout

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var ErrMissingKey = errors.New("key not found")

// ParseTable splits an OpenStack ascii table into its header and data rows.
// Border lines are skipped and every cell is trimmed.
func ParseTable(s string) ([]string, [][]string) {
	var (
		headers []string
		rows    [][]string
	)

	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "|") {
			continue
		}

		cells := strings.Split(strings.Trim(line, "|"), "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}

		if headers == nil {
			headers = cells
			continue
		}
		rows = append(rows, cells)
	}

	return headers, rows
}

var reconDelimiter = regexp.MustCompile(`^={79}`)

// ParseSwiftRecon groups the lines of swift-recon output by the blocks
// between its delimiter lines.
func ParseSwiftRecon(s string) [][]string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	var positions []int
	for i, l := range lines {
		if reconDelimiter.MatchString(l) {
			positions = append(positions, i)
		}
	}

	var blocks [][]string
	for i := 0; i+1 < len(positions); i++ {
		blocks = append(blocks, lines[positions[i]+1:positions[i+1]])
	}

	return blocks
}

// ParseSwiftRingBuilder reads the summary line of swift-ring-builder, such as
// "256 partitions, 3.000000 replicas, 1 regions, 1 zones, 9 devices, 0.78 balance, 0.00 dispersion".
// The result is empty when no summary line can be parsed.
func ParseSwiftRingBuilder(s string) map[string]float64 {
	data := make(map[string]float64)

	for _, line := range strings.Split(s, "\n") {
		if !strings.Contains(line, "dispersion") {
			continue
		}

		for _, element := range strings.Split(line, ",") {
			fields := strings.Fields(element)
			if len(fields) != 2 {
				return map[string]float64{}
			}

			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return map[string]float64{}
			}
			data[fields[1]] = v
		}

		break
	}

	return data
}

var osaReleases = map[string]struct {
	codename string
	major    string
}{
	"newton": {"Newton", "14"},
	"ocata":  {"Ocata", "15"},
	"pike":   {"Pike", "16"},
	"queens": {"Queens", "17"},
	"rocky":  {"Rocky", "18"},
}

// OSAVersion maps an openstack-ansible branch such as "pike" or "pike-rc" to
// its codename and major version. Unknown branches, master included, yield
// empty strings.
func OSAVersion(branch string) (string, string) {
	r, ok := osaReleases[strings.TrimSuffix(strings.ToLower(branch), "-rc")]
	if !ok {
		return "", ""
	}

	return r.codename, r.major
}

// Release describes the OpenStack deployment of a host.
type Release struct {
	Codename string
	Version  *semver.Version
}

// DefaultRelease stands for an unversioned deployment of master.
func DefaultRelease() Release {
	return Release{Codename: "master", Version: semver.New(99, 99, 99, "", "")}
}

// ParseOpenStackRelease reads DISTRIB_CODENAME and DISTRIB_RELEASE from an
// /etc/openstack-release document. On error the default release is returned
// along with the error.
func ParseOpenStackRelease(r io.Reader) (Release, error) {
	rel := DefaultRelease()

	env, err := godotenv.Parse(r)
	if err != nil {
		return rel, fmt.Errorf("godotenv.Parse: %w", err)
	}

	codename, ok := env["DISTRIB_CODENAME"]
	if !ok {
		return rel, fmt.Errorf("DISTRIB_CODENAME: %w", ErrMissingKey)
	}

	release, ok := env["DISTRIB_RELEASE"]
	if !ok {
		return rel, fmt.Errorf("DISTRIB_RELEASE: %w", ErrMissingKey)
	}

	v, err := semver.StrictNewVersion(strings.TrimPrefix(strings.TrimSpace(release), "r"))
	if err != nil {
		return rel, fmt.Errorf("semver.StrictNewVersion: %w", err)
	}

	return Release{Codename: codename, Version: v}, nil
}

// ReadOpenStackRelease parses the release file at pth.
func ReadOpenStackRelease(pth string) (Release, error) {
	f, err := os.Open(pth)
	if err != nil {
		return DefaultRelease(), fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()

	return ParseOpenStackRelease(f)
}

// RandomString returns n upper case hexadecimal characters, at most 32.
func RandomString(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}

	return s[:n]
}
