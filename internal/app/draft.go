// Package app implements the in-memory application-under-construction
// model (spec §3 "ApplicationDraft", §4.3 C3). It is deliberately a plain
// struct passed around explicitly by the dispatcher — one per client
// session — rather than the C source's single process-wide global (spec §9,
// "Global mutable state").
package app

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
	"github.com/arthurguyader/sec-lsm-manager/internal/pathtype"
)

// PathEntry is a (path, role) pair (spec §3 "PathEntry"). Paths are opaque
// byte strings; only the filesystem cares whether they are valid.
type PathEntry struct {
	Path string
	Role pathtype.Role
}

// Permission is an opaque URN-shaped string (spec §3 "Permission").
type Permission string

// IDSignal distinguishes "id was just set" from "id was already set to
// this value", replacing the C source's overloaded `rc` return value
// (spec §9, first open question: the post-state is now explicit).
type IDSignal int

const (
	IDSet IDSignal = iota
	IDAlreadySet
)

// Draft accumulates one application's declaration prior to install (spec
// §3 "ApplicationDraft"). It is not safe for concurrent use: one draft per
// session, used by exactly one goroutine at a time (spec §5).
type Draft struct {
	id          string
	idSet       bool
	paths       []PathEntry
	permissions mapset.Set[Permission]
	logOn       bool

	log logrus.FieldLogger
}

// New creates an empty draft. log may be nil, in which case logrus's
// standard logger is used.
func New(log logrus.FieldLogger) *Draft {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Draft{
		permissions: mapset.NewThreadUnsafeSet[Permission](),
		log:         log,
	}
}

// ID returns the currently set id and whether one has been set.
func (d *Draft) ID() (string, bool) { return d.id, d.idSet }

// Paths returns the accumulated path entries in insertion order (spec §3:
// "insertion order ... is preserved and observable").
func (d *Draft) Paths() []PathEntry {
	out := make([]PathEntry, len(d.paths))
	copy(out, d.paths)
	return out
}

// Permissions returns the accumulated permission set.
func (d *Draft) Permissions() []Permission {
	return d.permissions.ToSlice()
}

// LogOn reports the draft's logging toggle state.
func (d *Draft) LogOn() bool { return d.logOn }

// Log returns the draft's logger, for callers (such as the dispatcher's
// display handling) that need to log against this session without holding
// their own logger reference.
func (d *Draft) Log() logrus.FieldLogger { return d.log }

// SetLog sets the draft's logging toggle state and returns the new
// (post-)state, resolving §9's first open question explicitly.
func (d *Draft) SetLog(on bool) bool {
	d.logOn = on
	return d.logOn
}

// SetID sets the application id (spec §4.3 "set_id"). Fails InvalidArgument
// if id is empty, Conflict if a different id is already set. Re-setting
// the identical value is idempotent and reports IDAlreadySet.
func (d *Draft) SetID(id string) (IDSignal, error) {
	if id == "" {
		return 0, apperr.New(apperr.InvalidArgument, "id must not be empty")
	}
	if d.idSet {
		if d.id == id {
			return IDAlreadySet, nil
		}
		return 0, apperr.New(apperr.Conflict, "id already set to a different value")
	}
	d.id = id
	d.idSet = true
	return IDSet, nil
}

// AddPath appends a path entry (spec §4.3 "add_path"). Fails
// InvalidArgument if path is empty or roleText is not in the closed role
// set.
func (d *Draft) AddPath(path, roleText string) error {
	if path == "" {
		return apperr.New(apperr.InvalidArgument, "path must not be empty")
	}
	role, err := pathtype.RoleFromString(roleText)
	if err != nil {
		return err
	}
	d.paths = append(d.paths, PathEntry{Path: path, Role: role})
	return nil
}

// AddPermission adds a permission to the draft's permission set (spec
// §4.3 "add_permission"). Fails PreconditionFailed if no id is set yet,
// InvalidArgument if permission is empty. Idempotent.
func (d *Draft) AddPermission(permission string) error {
	if !d.idSet {
		return apperr.New(apperr.PreconditionFailed, "id must be set before adding a permission")
	}
	if permission == "" {
		return apperr.New(apperr.InvalidArgument, "permission must not be empty")
	}
	d.permissions.Add(Permission(permission))
	return nil
}

// Clean discards all accumulated state (spec §4.3 "clean"). id_set
// becomes false.
func (d *Draft) Clean() {
	d.id = ""
	d.idSet = false
	d.paths = nil
	d.permissions = mapset.NewThreadUnsafeSet[Permission]()
}

// ResetIDSet clears only the id_set flag, leaving the id itself and any
// on-disk artifacts in place (spec §3 "Lifecycles": successful install and
// uninstall both reset id_set to false, but install's artifacts survive by
// design, and uninstall may be called again against the same id).
func (d *Draft) ResetIDSet() {
	d.idSet = false
}

// ReadyToInstall reports whether the draft satisfies install's
// precondition: id set and at least one path.
func (d *Draft) ReadyToInstall() error {
	if !d.idSet {
		return apperr.New(apperr.PreconditionFailed, "id must be set before install")
	}
	if len(d.paths) == 0 {
		return apperr.New(apperr.PreconditionFailed, "at least one path is required before install")
	}
	return nil
}

// Display renders the draft for debugging/telemetry (spec §4.3
// "display"). It must not mutate the draft.
func (d *Draft) Display() string {
	var b strings.Builder
	if d.idSet {
		b.WriteString("id: " + d.id + "\n")
	} else {
		b.WriteString("id: (unset)\n")
	}
	for _, p := range d.paths {
		b.WriteString("path: " + p.Path + " " + p.Role.String() + "\n")
	}
	perms := d.permissions.ToSlice()
	for _, p := range perms {
		b.WriteString("permission: " + string(p) + "\n")
	}
	return b.String()
}
