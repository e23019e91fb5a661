package types

import (
	"fmt"
	"strings"
)

// Cardinality is the maximum number of entities a relationship field may
// reference.
type Cardinality int

const (
	One Cardinality = iota + 1
	Many
)

// ParseCardinality interprets a cardinality token from a schema document.
// A bare "1" is ONE; every other token is MANY.
func ParseCardinality(token string) Cardinality {
	if strings.TrimSpace(token) == "1" {
		return One
	}
	return Many
}

func (c Cardinality) String() string {
	switch c {
	case One:
		return "ONE"
	case Many:
		return "MANY"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}
