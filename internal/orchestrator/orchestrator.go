// Package orchestrator drives the install/uninstall protocol across every
// configured MAC backend (spec §4.7 C7). It is the only component allowed
// to call backend.Installer methods directly — everything else reaches a
// backend through here, so rollback ordering stays in one place.
package orchestrator

import (
	"github.com/sirupsen/logrus"

	"github.com/arthurguyader/sec-lsm-manager/internal/app"
	"github.com/arthurguyader/sec-lsm-manager/internal/backend"
)

// Orchestrator runs every configured backend in order on install, rolling
// back all previously-succeeded backends in reverse order on the first
// failure (spec §4.7: "compensating action each ... in reverse order").
type Orchestrator struct {
	backends []backend.Installer
	log      logrus.FieldLogger
}

func New(log logrus.FieldLogger, backends ...backend.Installer) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{backends: backends, log: log}
}

// Install runs draft.Paths() through every backend in order. On the Nth
// backend's failure, backends 1..N-1 are uninstalled in reverse before the
// error is returned.
func (o *Orchestrator) Install(id string, paths []app.PathEntry) error {
	for i, b := range o.backends {
		if err := b.Install(id, paths); err != nil {
			o.log.WithFields(logrus.Fields{"id": id, "backend": b.Name(), "error": err}).
				Error("backend install failed, rolling back")
			o.rollback(id, i)
			return err
		}
	}
	return nil
}

// rollback uninstalls backends[0:n] in reverse order, best-effort.
func (o *Orchestrator) rollback(id string, n int) {
	for i := n - 1; i >= 0; i-- {
		b := o.backends[i]
		if err := b.Uninstall(id); err != nil {
			o.log.WithFields(logrus.Fields{"id": id, "backend": b.Name(), "error": err}).
				Warn("compensating uninstall failed")
		}
	}
}

// Uninstall runs every backend's Uninstall in reverse order, best-effort:
// a failure in one backend does not prevent the others from being tried
// (spec §4.5/§4.6 "best-effort").
func (o *Orchestrator) Uninstall(id string) error {
	var first error
	for i := len(o.backends) - 1; i >= 0; i-- {
		b := o.backends[i]
		if err := b.Uninstall(id); err != nil {
			o.log.WithFields(logrus.Fields{"id": id, "backend": b.Name(), "error": err}).
				Warn("backend uninstall failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Check reports whether id is installed according to every configured
// backend; it is installed only if all backends agree.
func (o *Orchestrator) Check(id string) (bool, error) {
	for _, b := range o.backends {
		ok, err := b.Check(id)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
