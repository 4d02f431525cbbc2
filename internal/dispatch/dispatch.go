// Package dispatch implements the request dispatcher (spec §4.8 C8),
// grounded on main-security-manager-cmd.c's do_any/do_log/do_id/.../do_help
// table. Unlike the C source, there is no process-wide security_manager_t;
// each Session wraps one app.Draft and is driven by exactly one client
// connection (or, for the CLI, one argv batch).
package dispatch

import (
	"strings"

	"github.com/arthurguyader/sec-lsm-manager/internal/app"
	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
	"github.com/arthurguyader/sec-lsm-manager/internal/watch"
)

// Installer is the subset of orchestrator.Orchestrator a Session needs.
type Installer interface {
	Install(id string, paths []app.PathEntry) error
	Uninstall(id string) error
}

// Reply is one command's result: a wire status (0 or a negated
// errno-compatible code, per spec §7) and zero or more human-readable
// lines, mirroring the original's ERROR()/LOG() output interleaved with
// the final return code.
type Reply struct {
	Status int
	Lines  []string
}

func ok(lines ...string) Reply { return Reply{Status: 0, Lines: lines} }
func errOf(err error) Reply    { return Reply{Status: apperr.KindOf(err).Errno(), Lines: []string{err.Error()}} }

// Session holds one client's draft and the orchestrator used to fulfil
// install/uninstall. It is not safe for concurrent use (spec §5: "each
// client session is strictly sequential").
type Session struct {
	draft *app.Draft
	inst  Installer
}

func NewSession(draft *app.Draft, inst Installer) *Session {
	return &Session{draft: draft, inst: inst}
}

// Dispatch looks up words[0] in the closed command table and runs it with
// the remaining words as arguments (main-security-manager-cmd.c's do_any).
func (s *Session) Dispatch(words []string) Reply {
	if len(words) == 0 {
		return ok()
	}
	switch words[0] {
	case "log":
		return s.doLog(words[1:])
	case "clean":
		return s.doClean(words[1:])
	case "display":
		return s.doDisplay(words[1:])
	case "id":
		return s.doID(words[1:])
	case "path":
		return s.doPath(words[1:])
	case "permission":
		return s.doPermission(words[1:])
	case "install":
		return s.doInstall(words[1:])
	case "uninstall":
		return s.doUninstall(words[1:])
	case "help", "?":
		return s.doHelp(words[1:])
	default:
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"unknown command " + words[0] + " (try help)"}}
	}
}

// DispatchBatch runs a ';'-separated sequence of commands (spec §4.8
// "batch"). stopOnError mirrors one-shot CLI semantics (do_all's `quit`
// flag): when true, the batch stops at the first negative-status reply.
func (s *Session) DispatchBatch(line string, stopOnError bool) []Reply {
	var replies []Reply
	for _, cmd := range splitBatch(line) {
		words := strings.Fields(cmd)
		if len(words) == 0 {
			continue
		}
		r := s.Dispatch(words)
		replies = append(replies, r)
		if stopOnError && r.Status < 0 {
			break
		}
	}
	return replies
}

func splitBatch(line string) []string {
	return strings.Split(line, ";")
}

func (s *Session) doLog(args []string) Reply {
	if len(args) > 1 {
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"bad argument '" + args[1] + "'"}}
	}
	if len(args) == 1 {
		switch args[0] {
		case "on":
			return ok("logging " + onOff(s.draft.SetLog(true)))
		case "off":
			return ok("logging " + onOff(s.draft.SetLog(false)))
		default:
			return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"bad argument '" + args[0] + "'"}}
		}
	}
	return ok("logging " + onOff(s.draft.LogOn()))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (s *Session) doClean(args []string) Reply {
	if len(args) != 0 {
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"clean takes no arguments"}}
	}
	s.draft.Clean()
	return ok("clean success")
}

func (s *Session) doDisplay(args []string) Reply {
	if len(args) != 0 {
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"display takes no arguments"}}
	}
	if paths := s.draft.Paths(); len(paths) > 0 {
		id, _ := s.draft.ID()
		want := make([]string, len(paths))
		for i, p := range paths {
			want[i] = p.Path
		}
		watch.CheckSurvived(s.draft.Log(), id, want)
	}
	return ok(strings.Split(strings.TrimRight(s.draft.Display(), "\n"), "\n")...)
}

func (s *Session) doID(args []string) Reply {
	if len(args) != 1 {
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"not enough arguments"}}
	}
	signal, err := s.draft.SetID(args[0])
	if err != nil {
		return errOf(err)
	}
	if signal == app.IDSet {
		return ok("id set")
	}
	return ok("id already set")
}

func (s *Session) doPath(args []string) Reply {
	if len(args) != 2 {
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"not enough arguments"}}
	}
	if err := s.draft.AddPath(args[0], args[1]); err != nil {
		return errOf(err)
	}
	return ok("add path '" + args[0] + "' with type " + args[1])
}

func (s *Session) doPermission(args []string) Reply {
	if len(args) != 1 {
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"not enough arguments"}}
	}
	if err := s.draft.AddPermission(args[0]); err != nil {
		return errOf(err)
	}
	return ok("add permission " + args[0])
}

func (s *Session) doInstall(args []string) Reply {
	if len(args) != 0 {
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"install takes no arguments"}}
	}
	if err := s.draft.ReadyToInstall(); err != nil {
		return errOf(err)
	}
	id, _ := s.draft.ID()
	if err := s.inst.Install(id, s.draft.Paths()); err != nil {
		return errOf(err)
	}
	s.draft.ResetIDSet()
	return ok("install success")
}

// doUninstall does not gate on id_set (main-security-manager-cmd.c's
// do_uninstall only checks its own argument count via plink, not the
// application's readiness) — the draft retains its id across install's
// id_set reset (spec §8 scenario 5: "id x; install; uninstall" uninstalls
// the same x that was just installed, with id_set already false).
func (s *Session) doUninstall(args []string) Reply {
	if len(args) != 0 {
		return Reply{Status: apperr.InvalidArgument.Errno(), Lines: []string{"uninstall takes no arguments"}}
	}
	id, _ := s.draft.ID()
	if err := s.inst.Uninstall(id); err != nil {
		return errOf(err)
	}
	s.draft.ResetIDSet()
	return ok("uninstall success")
}

func (s *Session) doHelp(args []string) Reply {
	if len(args) == 1 {
		if text, ok := helpText[args[0]]; ok {
			return ok(strings.Split(strings.Trim(text, "\n"), "\n")...)
		}
	}
	return ok(strings.Split(strings.Trim(helpSummary, "\n"), "\n")...)
}

const helpSummary = `
Commands are: log, clean, display, id, path, permission, install, uninstall, quit, help
Type 'help command' to get help on the command

Example 'help log' to get help on log
`

var helpText = map[string]string{
	"log": `
Command: log [on|off]

With the 'on' or 'off' arguments, set the logging state to what required.
In all cases, prints the logging state.

Examples:

  log on                  activates the logging
`,
	"clean": `
Command: clean

Clean the actual handle of application
`,
	"id": `
Command: id app_id

Set the id of the application

Example : id agl-service-can-low-level
`,
	"path": `
Command: path path path_type

Add a path for the application

Path type value :
   - lib
   - conf
   - exec
   - icon
   - data
   - http
   - log
   - tmp

Example : path /tmp/file tmp
`,
	"permission": `
Command: permission permission

Add a permission for the application
WARNING : You need to set id before

Example : permission urn:AGL:permission::partner:scope-platform
`,
	"install": `
Command: install

Install application
WARNING : You need to set id before
`,
	"uninstall": `
Command: uninstall

Uninstall application
WARNING : You need to set id before
`,
	"quit": `
Command: quit

Quit the program
`,
	"help": `
Command: help [command]

Gives help on the command.

Available commands: log, clean, display, id, path, permission, install, uninstall, quit, help
`,
}
