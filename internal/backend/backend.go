// Package backend defines the capability set shared by the SELinux and
// SMACK backends (spec §9 DESIGN NOTE "Polymorphism over backends"): both
// present install/uninstall/check as the same three operations, so the
// orchestrator (C7) can drive either — or both — abstractly.
package backend

import "github.com/arthurguyader/sec-lsm-manager/internal/app"

// Installer is implemented by both the SELinux and SMACK backends.
type Installer interface {
	// Name identifies the backend for logging ("selinux", "smack").
	Name() string

	// Install materializes and activates the backend's rules for the
	// given id and paths (spec §4.5/§4.6 install protocols).
	Install(id string, paths []app.PathEntry) error

	// Uninstall reverses Install, best-effort (spec §4.5/§4.6 uninstall
	// protocols). Calling Uninstall when nothing was installed succeeds.
	Uninstall(id string) error

	// Check reports whether id's rules are currently active.
	Check(id string) (bool, error)
}
