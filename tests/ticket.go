package tests

import (
	"fmt"
	"strconv"
	"strings"
)

// Ticket is a tracker issue key such as ASC-123.
type Ticket struct {
	Project string
	Number  int
}

func ParseTicket(s string) (Ticket, error) {
	project, num, ok := strings.Cut(s, "-")
	if !ok || project == "" {
		return Ticket{}, fmt.Errorf("ticket %q: missing project", s)
	}

	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return Ticket{}, fmt.Errorf("ticket %q: invalid number", s)
	}

	return Ticket{Project: project, Number: n}, nil
}

func (t Ticket) String() string {
	return t.Project + "-" + strconv.Itoa(t.Number)
}
