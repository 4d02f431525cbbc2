// Package selinuxbackend implements the SELinux MAC backend (spec §4.5 C5),
// grounded on original_source/src/selinux-template.c. A module descriptor
// carries four artifact paths (te, if, fc, pp) derived from rules_dir and
// id; install generates the three source files from templates (via
// internal/template), compiles them with the external policy compiler
// (via internal/procwait), and registers the result with the policy store
// (internal/policystore); uninstall removes all four files and deregisters
// the module, best-effort.
package selinuxbackend

import (
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/arthurguyader/sec-lsm-manager/internal/app"
	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
	"github.com/arthurguyader/sec-lsm-manager/internal/identity"
	"github.com/arthurguyader/sec-lsm-manager/internal/pathtype"
	"github.com/arthurguyader/sec-lsm-manager/internal/policystore"
	"github.com/arthurguyader/sec-lsm-manager/internal/procwait"
	"github.com/arthurguyader/sec-lsm-manager/internal/template"
)

// Config mirrors the three overridable locations init_selinux_module reads
// from argument, environment (SELINUX_TE_TEMPLATE_FILE, SELINUX_IF_TEMPLATE_FILE,
// SELINUX_RULES_DIR), then compiled-in default, in that priority order.
type Config struct {
	RulesDir     string
	TeTemplate   string
	IfTemplate   string
	CompilerPath string // external policy compiler binary, e.g. "checkmodule"+"semodule_package" wrapper
}

const (
	DefaultRulesDir   = "/usr/share/security-manager/selinux-policy/"
	DefaultTeTemplate = "/usr/share/security-manager/app-template.te"
	DefaultIfTemplate = "/usr/share/security-manager/app-template.if"
)

// Backend implements backend.Installer for SELinux.
type Backend struct {
	cfg   Config
	fs    afero.Fs
	tmpl  *template.Engine
	store *policystore.Store
	log   logrus.FieldLogger
}

func New(fs afero.Fs, cfg Config, log logrus.FieldLogger) *Backend {
	if cfg.RulesDir == "" {
		cfg.RulesDir = os.Getenv("SELINUX_RULES_DIR")
	}
	if cfg.RulesDir == "" {
		cfg.RulesDir = DefaultRulesDir
	}
	if cfg.TeTemplate == "" {
		cfg.TeTemplate = os.Getenv("SELINUX_TE_TEMPLATE_FILE")
	}
	if cfg.TeTemplate == "" {
		cfg.TeTemplate = DefaultTeTemplate
	}
	if cfg.IfTemplate == "" {
		cfg.IfTemplate = os.Getenv("SELINUX_IF_TEMPLATE_FILE")
	}
	if cfg.IfTemplate == "" {
		cfg.IfTemplate = DefaultIfTemplate
	}
	if cfg.CompilerPath == "" {
		cfg.CompilerPath = "selinux-compile"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Backend{cfg: cfg, fs: fs, tmpl: template.New(fs), store: policystore.New(), log: log}
}

func (b *Backend) Name() string { return "selinux" }

type moduleFiles struct {
	te, if_, fc, pp string
}

func (b *Backend) files(id string) moduleFiles {
	base := b.cfg.RulesDir + id
	return moduleFiles{te: base + ".te", if_: base + ".if", fc: base + ".fc", pp: base + ".pp"}
}

func (b *Backend) removeIfExists(paths ...string) {
	for _, p := range paths {
		if err := b.fs.Remove(p); err != nil && !isNotExist(err) {
			b.log.WithFields(logrus.Fields{"path": p, "error": err}).Warn("could not remove selinux artifact")
		}
	}
}

func isNotExist(err error) bool {
	return err != nil && afero.IsNotExist(err)
}

// Install runs the five-step protocol from selinux-template.c's
// create_selinux_rules, rolling back partially-written artifacts on any
// failed step.
func (b *Backend) Install(id string, paths []app.PathEntry) error {
	selinuxID := identity.DeriveSelinuxID(id)
	mf := b.files(id)

	replacements := []template.Replacement{
		{Token: "~ID~", Value: id},
		{Token: "~APP~", Value: selinuxID},
	}

	if err := b.tmpl.ExpandToFile(b.cfg.TeTemplate, mf.te, replacements, 0, template.KeepLine); err != nil {
		b.removeIfExists(mf.te)
		return apperr.Wrap(apperr.KindOf(err), "generate "+mf.te, err)
	}
	if err := b.tmpl.ExpandToFile(b.cfg.IfTemplate, mf.if_, replacements, 0, template.KeepLine); err != nil {
		b.removeIfExists(mf.te, mf.if_)
		return apperr.Wrap(apperr.KindOf(err), "generate "+mf.if_, err)
	}
	if err := b.generateFc(mf.fc, selinuxID, paths); err != nil {
		b.removeIfExists(mf.te, mf.if_, mf.fc)
		return err
	}

	if err := b.compile(mf); err != nil {
		b.removeIfExists(mf.te, mf.if_, mf.fc)
		return apperr.Wrap(apperr.Backend, "compile selinux module "+id, err)
	}

	if err := b.store.InstallModule(mf.pp); err != nil {
		b.removeIfExists(mf.te, mf.if_, mf.fc, mf.pp)
		return err
	}

	return nil
}

// generateFc writes <id>.fc directly from paths, with no template: one
// "<path> gen_context(system_u:object_r:<label>,s0)" line per PathEntry
// (selinux-template.c's generate_app_module_fc).
func (b *Backend) generateFc(fcFile, selinuxID string, paths []app.PathEntry) error {
	out, err := b.fs.OpenFile(fcFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return apperr.Wrap(apperr.IO, "create "+fcFile, err)
	}
	defer out.Close()

	for _, p := range paths {
		attrs, err := pathtype.AttrsOf(p.Role)
		if err != nil {
			return err
		}
		label := identity.PublicLabel
		if !attrs.Public {
			label = identity.DeriveLabel(selinuxID, attrs.Suffix)
		}
		line := p.Path + " gen_context(system_u:object_r:" + label + ",s0)\n"
		if len(line) > template.DefaultMaxLineLength {
			return apperr.New(apperr.LineTooLong, "file-context line too long for "+p.Path)
		}
		if _, err := out.WriteString(line); err != nil {
			return apperr.Wrap(apperr.IO, "write "+fcFile, err)
		}
	}
	return nil
}

// compile invokes the external policy compiler over the three generated
// sources (selinux-template.c's launch_compile), waiting via procwait so a
// pid reused during a long compile can't be mistaken for the compiler.
func (b *Backend) compile(mf moduleFiles) error {
	cmd := exec.Command(b.cfg.CompilerPath, mf.te, mf.if_, mf.fc, mf.pp)
	return procwait.Run(cmd)
}

// Uninstall deletes the four artifact files and deregisters the module,
// logging but not short-circuiting on individual failures
// (remove_selinux_rules's best-effort semantics).
func (b *Backend) Uninstall(id string) error {
	mf := b.files(id)
	b.removeIfExists(mf.te, mf.if_, mf.fc, mf.pp)

	if installed, err := b.store.HasModule(id); err == nil && !installed {
		return nil
	}
	if err := b.store.RemoveModule(id); err != nil {
		b.log.WithFields(logrus.Fields{"id": id, "error": err}).Warn("could not remove selinux module from policy store")
		return err
	}
	return nil
}

// Check reports whether id's module is present in the policy store
// (check_module_in_policy); it does not check the source-file trio — that
// is exposed separately for callers that need it (spec §4.5 Query protocol).
func (b *Backend) Check(id string) (bool, error) {
	return b.store.HasModule(id)
}

// FilesExist reports whether all three source artifacts (te, if, fc) exist
// for id, mirroring check_module_files_exist.
func (b *Backend) FilesExist(id string) bool {
	mf := b.files(id)
	for _, p := range []string{mf.te, mf.if_, mf.fc} {
		exists, err := afero.Exists(b.fs, p)
		if err != nil || !exists {
			return false
		}
	}
	return true
}
