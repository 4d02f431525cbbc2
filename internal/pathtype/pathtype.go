// Package pathtype is the path-role registry (spec §3 "PathRole", §4.2 C2):
// a single compile-time table mapping each closed-enumeration role to its
// per-backend attributes.
package pathtype

import "github.com/arthurguyader/sec-lsm-manager/internal/apperr"

// Role is the closed enumeration of path roles a PathEntry may carry.
type Role int

const (
	Lib Role = iota
	Conf
	Exec
	Icon
	Data
	HTTP
	Log
	Tmp
	Public

	numRoles
)

func (r Role) String() string {
	s, ok := names[r]
	if !ok {
		return "unknown"
	}
	return s
}

// Attrs holds the per-backend attributes of a role (spec §3).
type Attrs struct {
	Suffix     string // label suffix; empty for Public, which bypasses derivation
	Executable bool
	Transmute  bool
	Public     bool
}

var names = map[Role]string{
	Lib:    "lib",
	Conf:   "conf",
	Exec:   "exec",
	Icon:   "icon",
	Data:   "data",
	HTTP:   "http",
	Log:    "log",
	Tmp:    "tmp",
	Public: "public",
}

// table is sized by its own highest keyed entry, and the compile-time
// assertion below fails to compile if that size differs from numRoles, so
// a Role appended before numRoles without a matching entry is the
// "build-time error" §4.2 requires of a strongly-typed implementation.
var table = [...]Attrs{
	Lib:    {Suffix: "lib"},
	Conf:   {Suffix: "conf"},
	Exec:   {Suffix: "exec", Executable: true},
	Icon:   {Suffix: "icon"},
	Data:   {Suffix: "data", Transmute: true},
	HTTP:   {Suffix: "http", Transmute: true},
	Log:    {Suffix: "log"},
	Tmp:    {Suffix: "tmp", Transmute: true},
	Public: {Public: true},
}

// compile-time exhaustiveness check: the constant index is negative (or
// out of range) unless len(table) equals numRoles, so the line fails to
// compile if numRoles grows without a corresponding table entry above.
var _ = [1]struct{}{}[len(table)-int(numRoles)]

// AttrsOf returns the attributes of role.
func AttrsOf(role Role) (Attrs, error) {
	if role < 0 || role >= numRoles {
		return Attrs{}, apperr.New(apperr.InvalidArgument, "unknown path role")
	}
	return table[role], nil
}

// RoleFromString parses the closed set of role names accepted on the wire
// (spec §4.8 "path <path> <role>").
func RoleFromString(text string) (Role, error) {
	for r, n := range names {
		if n == text {
			return r, nil
		}
	}
	return 0, apperr.New(apperr.InvalidArgument, "unknown path role: "+text)
}
