package junit

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

// TimeLayout is the layout of every timestamp property written to a report.
const TimeLayout = "2006-01-02T15:04:05Z"

var ErrNoSuite = errors.New("document has no testsuite element")

// Property is a name/value pair attached to a suite or to a single test case.
type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Suite is the <testsuite> root of an augmented report. Properties are
// declared before the test cases so they are always serialized first.
type Suite struct {
	XMLName    xml.Name    `xml:"testsuite"`
	Name       string      `xml:"name,attr"`
	Tests      int         `xml:"tests,attr"`
	Errors     int         `xml:"errors,attr"`
	Failures   int         `xml:"failures,attr"`
	Skips      int         `xml:"skips,attr"`
	Time       string      `xml:"time,attr,omitempty"`
	Timestamp  string      `xml:"timestamp,attr,omitempty"`
	Hostname   string      `xml:"hostname,attr,omitempty"`
	Properties []Property  `xml:"properties>property,omitempty"`
	TestCases  []*TestCase `xml:"testcase"`
}

type TestCase struct {
	ClassName  string     `xml:"classname,attr"`
	Name       string     `xml:"name,attr"`
	Time       string     `xml:"time,attr,omitempty"`
	Properties []Property `xml:"properties>property,omitempty"`
	Failure    *Result    `xml:"failure,omitempty"`
	Error      *Result    `xml:"error,omitempty"`
	Skipped    *Result    `xml:"skipped,omitempty"`
	SystemOut  string     `xml:"system-out,omitempty"`
}

// Result holds the body of a <failure>, <error> or <skipped> element.
type Result struct {
	Message  string `xml:"message,attr,omitempty"`
	Type     string `xml:"type,attr,omitempty"`
	Contents string `xml:",chardata"`
}

type suites struct {
	XMLName xml.Name `xml:"testsuites"`
	Suites  []Suite  `xml:"testsuite"`
}

func NewSuite(name string) *Suite {
	return &Suite{Name: name}
}

func (s *Suite) AddProperty(name, value string) {
	s.Properties = append(s.Properties, Property{Name: name, Value: value})
}

// Recount derives the tests/errors/failures/skips attributes from the cases.
func (s *Suite) Recount() {
	s.Tests, s.Errors, s.Failures, s.Skips = len(s.TestCases), 0, 0, 0
	for _, tc := range s.TestCases {
		switch {
		case tc.Error != nil:
			s.Errors++
		case tc.Failure != nil:
			s.Failures++
		case tc.Skipped != nil:
			s.Skips++
		}
	}
}

// PropertyValue returns the value of the first suite property with the given name.
func (s *Suite) PropertyValue(name string) (string, bool) {
	return lookup(s.Properties, name)
}

func (tc *TestCase) AddProperty(name, value string) {
	tc.Properties = append(tc.Properties, Property{Name: name, Value: value})
}

func (tc *TestCase) PropertyValue(name string) (string, bool) {
	return lookup(tc.Properties, name)
}

func lookup(props []Property, name string) (string, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}

	return "", false
}

// Encode writes the XML header followed by the indented suite document.
func Encode(w io.Writer, s *Suite) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("xml.Encoder.Encode: %w", err)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}

	return nil
}

// Decode reads a report. Both a bare <testsuite> document and a <testsuites>
// wrapper are accepted; for the latter the first suite is returned.
func Decode(r io.Reader) (*Suite, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	root, err := rootElement(b)
	if err != nil {
		return nil, err
	}

	switch root {
	case "testsuite":
		var s Suite
		if err := xml.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("xml.Unmarshal: %w", err)
		}
		return &s, nil
	case "testsuites":
		var ss suites
		if err := xml.Unmarshal(b, &ss); err != nil {
			return nil, fmt.Errorf("xml.Unmarshal: %w", err)
		}
		if len(ss.Suites) == 0 {
			return nil, ErrNoSuite
		}
		return &ss.Suites[0], nil
	default:
		return nil, fmt.Errorf("unexpected root element %q: %w", root, ErrNoSuite)
	}
}

// DecodeFile opens pth and decodes the report stored in it.
func DecodeFile(pth string) (*Suite, error) {
	f, err := os.Open(pth)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

func rootElement(b []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrNoSuite
			}
			return "", fmt.Errorf("xml.Decoder.Token: %w", err)
		}

		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
