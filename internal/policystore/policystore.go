// Package policystore wraps the SELinux module store (semanage in the
// original daemon: semanage_handle_create/connect/module_install_file/
// module_remove/module_list/commit, selinux-template.c). Go has no
// libsemanage binding in the retrieval pack, so the store is driven the
// way the pack's other backends drive privileged host tools — shelling
// out, then waiting via procwait — invoking semodule(8), which exposes the
// same install/remove/list surface as libsemanage's public API.
package policystore

import (
	"bytes"
	"os/exec"
	"strconv"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
	"github.com/arthurguyader/sec-lsm-manager/internal/procwait"
)

// Store models the semanage handle's lifecycle: connect once, perform
// install/remove/list operations, disconnect. The original sets a default
// priority of 400 on every handle (create_semanage_handle); semodule has no
// equivalent of per-handle priority, so Store.Priority is threaded through
// as the --priority flag that every mutating call receives.
type Store struct {
	Priority int
}

// DefaultPriority mirrors create_semanage_handle's semanage_set_default_priority(400).
const DefaultPriority int = 400

// New returns a Store using DefaultPriority, mirroring create_semanage_handle.
func New() *Store {
	return &Store{Priority: DefaultPriority}
}

// InstallModule registers ppFile in the policy store and commits
// (semanage_module_install_file + semanage_commit).
func (s *Store) InstallModule(ppFile string) error {
	cmd := exec.Command("semodule", "-X", strconv.Itoa(s.Priority), "-i", ppFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := procwait.Run(cmd); err != nil {
		return apperr.Wrap(apperr.Backend, "install module "+ppFile+": "+stderr.String(), err)
	}
	return nil
}

// RemoveModule removes the module named id from the policy store and
// commits (semanage_module_remove + semanage_commit).
func (s *Store) RemoveModule(id string) error {
	cmd := exec.Command("semodule", "-X", strconv.Itoa(s.Priority), "-r", id)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := procwait.Run(cmd); err != nil {
		return apperr.Wrap(apperr.Backend, "remove module "+id+": "+stderr.String(), err)
	}
	return nil
}

// HasModule reports whether id is present in the policy store's module
// listing (semanage_module_list + name comparison, check_module).
func (s *Store) HasModule(id string) (bool, error) {
	out, err := exec.Command("semodule", "-l").Output()
	if err != nil {
		return false, apperr.Wrap(apperr.Backend, "list modules", err)
	}
	for _, line := range bytes.Split(out, []byte("\n")) {
		fields := bytes.Fields(line)
		if len(fields) > 0 && string(fields[0]) == id {
			return true, nil
		}
	}
	return false, nil
}

