package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurguyader/sec-lsm-manager/internal/app"
	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

type fakeInstaller struct {
	installErr    error
	uninstallErr  error
	installedID   string
	uninstalledID string
}

func (f *fakeInstaller) Install(id string, paths []app.PathEntry) error {
	f.installedID = id
	return f.installErr
}

func (f *fakeInstaller) Uninstall(id string) error {
	f.uninstalledID = id
	return f.uninstallErr
}

func newSession(inst Installer) *Session {
	return NewSession(app.New(nil), inst)
}

func TestLogToggle(t *testing.T) {
	s := newSession(&fakeInstaller{})

	r := s.Dispatch([]string{"log"})
	assert.Equal(t, "logging off", r.Lines[0])

	r = s.Dispatch([]string{"log", "on"})
	assert.Equal(t, "logging on", r.Lines[0])

	r = s.Dispatch([]string{"log", "bogus"})
	assert.Equal(t, apperr.InvalidArgument.Errno(), r.Status)
}

func TestIDSetAndAlreadySet(t *testing.T) {
	s := newSession(&fakeInstaller{})

	r := s.Dispatch([]string{"id", "myapp"})
	assert.Equal(t, 0, r.Status)
	assert.Equal(t, "id set", r.Lines[0])

	r = s.Dispatch([]string{"id", "myapp"})
	assert.Equal(t, "id already set", r.Lines[0])

	r = s.Dispatch([]string{"id", "other"})
	assert.Equal(t, apperr.Conflict.Errno(), r.Status)
}

func TestPathAndPermission(t *testing.T) {
	s := newSession(&fakeInstaller{})
	_ = s.Dispatch([]string{"id", "myapp"})

	r := s.Dispatch([]string{"path", "/tmp/x", "tmp"})
	assert.Equal(t, 0, r.Status)

	r = s.Dispatch([]string{"permission", "urn:x"})
	assert.Equal(t, 0, r.Status)

	r = s.Dispatch([]string{"path", "/tmp/x"})
	assert.Equal(t, apperr.InvalidArgument.Errno(), r.Status, "missing role argument")
}

func TestInstallRequiresReadyDraft(t *testing.T) {
	s := newSession(&fakeInstaller{})

	r := s.Dispatch([]string{"install"})
	assert.Equal(t, apperr.PreconditionFailed.Errno(), r.Status)
}

func TestInstallSuccessResetsIDButKeepsPaths(t *testing.T) {
	inst := &fakeInstaller{}
	s := newSession(inst)
	_ = s.Dispatch([]string{"id", "myapp"})
	_ = s.Dispatch([]string{"path", "/tmp/x", "tmp"})

	r := s.Dispatch([]string{"install"})
	require.Equal(t, 0, r.Status)
	assert.Equal(t, "myapp", inst.installedID)

	_, set := s.draft.ID()
	assert.False(t, set, "successful install resets id_set")
	assert.Len(t, s.draft.Paths(), 1, "paths survive a successful install")

	r = s.Dispatch([]string{"uninstall"})
	require.Equal(t, 0, r.Status, "uninstall does not gate on id_set (spec §8 scenario 5)")
	assert.Equal(t, "myapp", inst.uninstalledID, "the id survives install's id_set reset")
}

func TestInstallPropagatesBackendError(t *testing.T) {
	inst := &fakeInstaller{installErr: errors.New("boom")}
	s := newSession(inst)
	_ = s.Dispatch([]string{"id", "myapp"})
	_ = s.Dispatch([]string{"path", "/tmp/x", "tmp"})

	r := s.Dispatch([]string{"install"})
	assert.Less(t, r.Status, 0)
}

func TestUninstallWithoutIDPassesEmptyID(t *testing.T) {
	inst := &fakeInstaller{}
	s := newSession(inst)
	r := s.Dispatch([]string{"uninstall"})
	require.Equal(t, 0, r.Status, "do_uninstall does not gate on id readiness")
	assert.Equal(t, "", inst.uninstalledID)
}

func TestUninstallSuccess(t *testing.T) {
	inst := &fakeInstaller{}
	s := newSession(inst)
	_ = s.Dispatch([]string{"id", "myapp"})

	r := s.Dispatch([]string{"uninstall"})
	require.Equal(t, 0, r.Status)
	assert.Equal(t, "myapp", inst.uninstalledID)

	_, set := s.draft.ID()
	assert.False(t, set, "successful uninstall resets id_set too")
}

func TestUnknownCommand(t *testing.T) {
	s := newSession(&fakeInstaller{})
	r := s.Dispatch([]string{"frobnicate"})
	assert.Equal(t, apperr.InvalidArgument.Errno(), r.Status)
}

func TestDispatchBatchStopsOnError(t *testing.T) {
	s := newSession(&fakeInstaller{})
	replies := s.DispatchBatch("id myapp; permission ; path /tmp/x tmp", true)

	require.Len(t, replies, 2, "batch stops after the failing 'permission' call")
	assert.Equal(t, 0, replies[0].Status)
	assert.Less(t, replies[1].Status, 0)
}

func TestDispatchBatchContinuesWhenNotStopOnError(t *testing.T) {
	s := newSession(&fakeInstaller{})
	replies := s.DispatchBatch("id myapp; permission ; clean", false)
	require.Len(t, replies, 3)
}

func TestDispatchBatchScenario5InstallThenUninstall(t *testing.T) {
	inst := &fakeInstaller{}
	s := newSession(inst)

	replies := s.DispatchBatch("id x; install; uninstall", true)
	require.Len(t, replies, 2, "install requires a path first, so it fails and the batch stops there")
	assert.Equal(t, 0, replies[0].Status)
	assert.Less(t, replies[1].Status, 0)

	_ = s.Dispatch([]string{"path", "/opt/x/bin/x", "exec"})
	replies = s.DispatchBatch("install; uninstall", true)
	require.Len(t, replies, 2)
	assert.Equal(t, 0, replies[0].Status, "install success")
	assert.Equal(t, 0, replies[1].Status, "uninstall succeeds though install already cleared id_set")
	assert.Equal(t, "x", inst.uninstalledID)
}

func TestHelpSummaryAndPerCommand(t *testing.T) {
	s := newSession(&fakeInstaller{})

	r := s.Dispatch([]string{"help"})
	assert.Contains(t, r.Lines[0], "Commands are")

	r = s.Dispatch([]string{"help", "install"})
	assert.Contains(t, r.Lines[2], "Install application")
}

func TestDisplayShowsDraftState(t *testing.T) {
	s := newSession(&fakeInstaller{})
	_ = s.Dispatch([]string{"id", "myapp"})

	r := s.Dispatch([]string{"display"})
	assert.Contains(t, r.Lines[0], "id: myapp")
}

func TestCleanResetsDraft(t *testing.T) {
	s := newSession(&fakeInstaller{})
	_ = s.Dispatch([]string{"id", "myapp"})

	r := s.Dispatch([]string{"clean"})
	assert.Equal(t, 0, r.Status)

	r = s.Dispatch([]string{"permission", "urn:x"})
	assert.Equal(t, apperr.PreconditionFailed.Errno(), r.Status, "clean wipes the id, permission still requires one")
}
