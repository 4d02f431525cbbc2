// Package identity derives the SELinux-safe variant of an application id
// and the labels generated from an (id, role) pair (spec §3 "Label", §4.1
// C1). Grounded on selinux-template.c's dash_to_underscore()/generate_label()
// and smack-template.c's generate_label(id, prefix_app, NULL).
package identity

import "strings"

// labelPrefix is the fixed prefix every non-public label carries, matching
// "App:" from the original's generate_label (see selinux-label.h /
// smack-label.h, referenced but not included in original_source/).
const labelPrefix = "App"

// PublicLabel is the single global label shared by every path registered
// with the "public" role. It is a borrowed static: callers must never
// attempt to free or mutate it (spec §9, third open question).
const PublicLabel = "public_app"

// DeriveSelinuxID replaces every '-' in id with '_'. All other bytes are
// preserved untouched, satisfying the invariant in spec §8.
func DeriveSelinuxID(id string) string {
	return strings.ReplaceAll(id, "-", "_")
}

// DeriveLabel concatenates the fixed prefix, the (already backend-adjusted)
// id, a separator and the role's suffix. Output is a pure function of its
// inputs, so it is automatically stable across runs and processes (spec §8).
func DeriveLabel(id, suffix string) string {
	if suffix == "" {
		return labelPrefix + ":" + id
	}
	return labelPrefix + ":" + id + ":" + suffix
}

// ExecLabelStrip removes a trailing ":<suffix>" from label, used to derive
// the SMACK64EXEC value from a path's regular SMACK64 label (spec §4.1,
// "exec_label_strip"). It is the inverse of DeriveLabel for the exec
// suffix: DeriveLabel(id, "exec") -> ExecLabelStrip gives back
// DeriveLabel(id, "").
func ExecLabelStrip(label, suffix string) string {
	return strings.TrimSuffix(label, ":"+suffix)
}
