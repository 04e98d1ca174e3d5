package position

import "strings"

// Side is the direction of a trade.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// ParseSide accepts "long" or "short" in any case.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Long:
		return Long, true
	case Short:
		return Short, true
	}
	return "", false
}

func (s Side) String() string { return string(s) }
