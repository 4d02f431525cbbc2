// Package smackbackend implements the SMACK MAC backend (spec §4.6 C6),
// grounded on original_source/src/smack-template.c and smack.c. Unlike
// SELinux, SMACK enforcement is a direct property of each file's extended
// attributes, so this backend both generates a kernel-loadable rules file
// and labels the PathEntry paths themselves.
package smackbackend

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/arthurguyader/sec-lsm-manager/internal/app"
	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
	"github.com/arthurguyader/sec-lsm-manager/internal/hostmount"
	"github.com/arthurguyader/sec-lsm-manager/internal/identity"
	"github.com/arthurguyader/sec-lsm-manager/internal/pathtype"
	"github.com/arthurguyader/sec-lsm-manager/internal/template"
)

const (
	DefaultTemplateFile = "/usr/share/security-manager/app-template.smack"
	DefaultRulesDir     = "/etc/smack/accesses.d/"

	rulesFilePrefix = "app-"
	commentChar     = '#'

	smack64          = "security.SMACK64"
	smack64Exec      = "security.SMACK64EXEC"
	smack64Transmute = "security.SMACK64TRANSMUTE"

	// load2Path is the smackfs pseudo-file the original libsmack writes
	// accumulated rules to via smack_accesses_apply (smack.c).
	load2Path = "/sys/fs/smackfs/load2"
)

// Rule is one SMACK access-control triple (smack-template.c's subject,
// object, access tokens).
type Rule struct {
	Subject string
	Object  string
	Access  string
}

// Config mirrors get_smack_template_file/get_smack_rules_dir's override
// chain (argument, then SMACK_TEMPLATE_FILE/SMACK_RULES_DIR, then default).
type Config struct {
	TemplateFile string
	RulesDir     string
}

// Backend implements backend.Installer for SMACK.
type Backend struct {
	cfg  Config
	fs   afero.Fs
	tmpl *template.Engine
	log  logrus.FieldLogger
}

func New(fs afero.Fs, cfg Config, log logrus.FieldLogger) *Backend {
	if cfg.TemplateFile == "" {
		cfg.TemplateFile = os.Getenv("SMACK_TEMPLATE_FILE")
	}
	if cfg.TemplateFile == "" {
		cfg.TemplateFile = DefaultTemplateFile
	}
	if cfg.RulesDir == "" {
		cfg.RulesDir = os.Getenv("SMACK_RULES_DIR")
	}
	if cfg.RulesDir == "" {
		cfg.RulesDir = DefaultRulesDir
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Backend{cfg: cfg, fs: fs, tmpl: template.New(fs), log: log}
}

func (b *Backend) Name() string { return "smack" }

func (b *Backend) rulesFile(id string) string {
	return b.cfg.RulesDir + rulesFilePrefix + id
}

// parseRules reads the template, substitutes ~APP~ with the application's
// label, and validates each non-comment/blank line splits into exactly
// three whitespace-separated tokens (smack-template.c's parse_line /
// count_space == 2 check).
func (b *Backend) parseRules(id string) ([]Rule, error) {
	appLabel := identity.DeriveLabel(id, "")
	replacements := []template.Replacement{{Token: "~APP~", Value: appLabel}}

	var rules []Rule
	err := b.tmpl.Expand(b.cfg.TemplateFile, replacements, commentChar, template.SkipLine, func(line string) error {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return apperr.New(apperr.MalformedRule, "smack rule must have exactly 3 tokens: "+line)
		}
		rules = append(rules, Rule{Subject: fields[0], Object: fields[1], Access: fields[2]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// Install runs create_smack_rules's protocol: parse + validate rules,
// load them into the kernel if SMACK is enforcing, persist the rules file,
// then label every PathEntry's extended attributes.
func (b *Backend) Install(id string, paths []app.PathEntry) error {
	rules, err := b.parseRules(id)
	if err != nil {
		return err
	}

	enabled, err := hostmount.SmackEnabled()
	if err != nil {
		return err
	}
	if enabled {
		if err := applyRules(rules); err != nil {
			return apperr.Wrap(apperr.Backend, "load smack rules for "+id, err)
		}
	}

	if err := b.writeRulesFile(id, rules); err != nil {
		return err
	}

	b.labelPaths(id, paths)
	return nil
}

func (b *Backend) writeRulesFile(id string, rules []Rule) error {
	path := b.rulesFile(id)
	out, err := b.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return apperr.Wrap(apperr.IO, "create "+path, err)
	}
	defer out.Close()

	for _, r := range rules {
		if _, err := out.WriteString(r.Subject + " " + r.Object + " " + r.Access + "\n"); err != nil {
			return apperr.Wrap(apperr.IO, "write "+path, err)
		}
	}
	return nil
}

// labelPaths sets the xattrs that make SMACK enforcement effective on the
// filesystem (spec §4.6 "File labeling"). Missing paths are skipped with a
// warning, not a fatal error — the installed policy may reference
// not-yet-created application paths.
func (b *Backend) labelPaths(id string, paths []app.PathEntry) {
	for _, p := range paths {
		attrs, err := pathtype.AttrsOf(p.Role)
		if err != nil {
			b.log.WithFields(logrus.Fields{"id": id, "path": p.Path, "error": err}).Warn("unknown path role, skipping label")
			continue
		}

		info, err := os.Lstat(p.Path)
		if err != nil {
			b.log.WithFields(logrus.Fields{"id": id, "path": p.Path}).Warn("path does not exist, skipping smack label")
			continue
		}

		label := identity.PublicLabel
		if !attrs.Public {
			label = identity.DeriveLabel(id, attrs.Suffix)
		}

		if err := unix.Lsetxattr(p.Path, smack64, []byte(label), 0); err != nil {
			b.log.WithFields(logrus.Fields{"id": id, "path": p.Path, "error": err}).Warn("could not set SMACK64")
			continue
		}

		if attrs.Executable {
			execLabel := identity.ExecLabelStrip(label, attrs.Suffix)
			if err := unix.Lsetxattr(p.Path, smack64Exec, []byte(execLabel), 0); err != nil {
				b.log.WithFields(logrus.Fields{"id": id, "path": p.Path, "error": err}).Warn("could not set SMACK64EXEC")
			}
		}

		if attrs.Transmute && info.IsDir() {
			if err := unix.Lsetxattr(p.Path, smack64Transmute, []byte("TRUE"), 0); err != nil {
				b.log.WithFields(logrus.Fields{"id": id, "path": p.Path, "error": err}).Warn("could not set SMACK64TRANSMUTE")
			}
		}
	}
}

// Uninstall reverses Install's rule persistence, best-effort
// (remove_smack_rules): if SMACK is enforcing, read back the saved rules
// and clear them from the kernel, then delete the rules file regardless.
// File labels on application paths are left in place, matching the
// original, which never reverses xattrs on uninstall.
func (b *Backend) Uninstall(id string) error {
	path := b.rulesFile(id)

	enabled, err := hostmount.SmackEnabled()
	if err != nil {
		b.log.WithFields(logrus.Fields{"id": id, "error": err}).Warn("could not determine smack enablement")
	}
	if err == nil && enabled {
		if rules, rerr := b.readRulesFile(path); rerr != nil {
			if !os.IsNotExist(rerr) {
				b.log.WithFields(logrus.Fields{"id": id, "error": rerr}).Warn("could not read smack rules file for clearing")
			}
		} else if cerr := clearRules(rules); cerr != nil {
			b.log.WithFields(logrus.Fields{"id": id, "error": cerr}).Warn("could not clear smack rules from kernel")
		}
	}

	if err := b.fs.Remove(path); err != nil && !afero.IsNotExist(err) {
		b.log.WithFields(logrus.Fields{"id": id, "error": err}).Warn("could not remove smack rules file")
	}
	return nil
}

func (b *Backend) readRulesFile(path string) ([]Rule, error) {
	f, err := b.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rules []Rule
	var buf [4096]byte
	n, _ := f.Read(buf[:])
	for _, line := range strings.Split(string(buf[:n]), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		rules = append(rules, Rule{Subject: fields[0], Object: fields[1], Access: fields[2]})
	}
	return rules, nil
}

// Check reports whether id's rules file is present on disk.
func (b *Backend) Check(id string) (bool, error) {
	return afero.Exists(b.fs, b.rulesFile(id))
}

// applyRules loads rules into the kernel's access table via smackfs/load2
// (smack.c's smack_accesses_apply).
func applyRules(rules []Rule) error {
	f, err := os.OpenFile(load2Path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, r := range rules {
		if _, err := f.WriteString(r.Subject + " " + r.Object + " " + r.Access + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// clearRules revokes rules from the kernel's access table by reapplying
// each triple with an all-dash access string (smack.c's
// smack_accesses_clear convention).
func clearRules(rules []Rule) error {
	f, err := os.OpenFile(load2Path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, r := range rules {
		if _, err := f.WriteString(r.Subject + " " + r.Object + " -----\n"); err != nil {
			return err
		}
	}
	return nil
}
