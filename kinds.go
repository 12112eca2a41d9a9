package bugsnag_notifier

import (
	"fmt"
	"strings"
)

// ErrorKind is a bitmask of runtime error kinds
type ErrorKind uint32

const (
	KindFatal ErrorKind = 1 << iota
	KindError
	KindWarning
	KindNotice
	KindDeprecated

	KindAll = KindFatal | KindError | KindWarning | KindNotice | KindDeprecated
)

// Severity of a report as understood by the collector
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var kindNames = map[ErrorKind]string{
	KindFatal:      "fatal",
	KindError:      "error",
	KindWarning:    "warning",
	KindNotice:     "notice",
	KindDeprecated: "deprecated",
}

// Enabled reports whether every bit of kind is set in k
func (k ErrorKind) Enabled(kind ErrorKind) bool {
	return kind != 0 && k&kind == kind
}

// IsFatal reports whether the kind terminates the process
func (k ErrorKind) IsFatal() bool {
	return k&KindFatal != 0
}

// Severity maps the kind to a report severity
func (k ErrorKind) Severity() Severity {
	switch {
	case k&(KindFatal|KindError) != 0:
		return SeverityError
	case k&KindWarning != 0:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// String returns the names of the bits set, joined with "|"
func (k ErrorKind) String() string {
	if k == 0 {
		return "none"
	}
	var names []string
	for bit := KindFatal; bit <= KindDeprecated; bit <<= 1 {
		if k&bit != 0 {
			names = append(names, kindNames[bit])
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
	return strings.Join(names, "|")
}

// ParseErrorKinds converts kind names into a mask. An empty list means all kinds.
func ParseErrorKinds(names []string) (ErrorKind, error) {
	if len(names) == 0 {
		return KindAll, nil
	}

	var mask ErrorKind
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			mask |= KindAll
			continue
		}

		found := false
		for kind, kindName := range kindNames {
			if kindName == name {
				mask |= kind
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown error kind %q", name)
		}
	}

	return mask, nil
}
