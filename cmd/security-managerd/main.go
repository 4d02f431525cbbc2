// Command security-managerd is the MAC-policy installation daemon (spec §6
// "Daemon CLI"), grounded on main-security-managerd.c's option parsing,
// privilege drop and server bring-up.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/arthurguyader/sec-lsm-manager/internal/app"
	"github.com/arthurguyader/sec-lsm-manager/internal/backend"
	"github.com/arthurguyader/sec-lsm-manager/internal/capability"
	"github.com/arthurguyader/sec-lsm-manager/internal/config"
	"github.com/arthurguyader/sec-lsm-manager/internal/dispatch"
	"github.com/arthurguyader/sec-lsm-manager/internal/hostmount"
	"github.com/arthurguyader/sec-lsm-manager/internal/orchestrator"
	"github.com/arthurguyader/sec-lsm-manager/internal/pidfile"
	"github.com/arthurguyader/sec-lsm-manager/internal/protocol"
	"github.com/arthurguyader/sec-lsm-manager/internal/selinuxbackend"
	"github.com/arthurguyader/sec-lsm-manager/internal/smackbackend"
	"github.com/arthurguyader/sec-lsm-manager/internal/sockdir"
	"github.com/arthurguyader/sec-lsm-manager/internal/sysutil"
)

const version = "security-managerd version 0.1\n"

// defaultSocketDir/Base/Scheme mirror security_manager_default_socket_dir
// and friends, referenced but not defined in the retrieved C sources.
const (
	defaultSocketDir  = "/run/security-manager"
	defaultSocketBase = "security-manager.sock"
	defaultPidFile    = "/run/security-managerd.pid"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		user        string
		group       string
		flog        bool
		socketDir   string
		makeSockDir bool
		ownSockDir  bool
		configPath  string
	)

	var showVersion bool

	cmd := &cobra.Command{
		Use:           "security-managerd",
		Short:         "MAC policy installation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Print(version)
				return nil
			}
			return serve(serveArgs{
				user: user, group: group, flog: flog,
				socketDir: socketDir, makeSockDir: makeSockDir, ownSockDir: ownSockDir,
				configPath: configPath,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&user, "user", "u", "", "set the user")
	flags.StringVarP(&group, "group", "g", "", "set the group")
	flags.BoolVarP(&flog, "log", "l", false, "activate log of transactions")
	flags.StringVarP(&socketDir, "socketdir", "S", "", "set the base directory for sockets (default: "+defaultSocketDir+")")
	flags.BoolVarP(&makeSockDir, "make-socket-dir", "M", false, "make the socket directory")
	flags.BoolVarP(&ownSockDir, "own-socket-dir", "O", false, "set user and group on socket directory")
	flags.StringVarP(&configPath, "config", "c", "", "path to a TOML configuration file")
	flags.BoolVarP(&showVersion, "version", "v", false, "print the version and exit")

	if err := cmd.Execute(); err != nil {
		if exitCode == 3 {
			fmt.Fprintln(os.Stderr, "serve failed:", err)
			return exitCode
		}
		fmt.Fprintln(os.Stderr, "initialization failed:", err)
		return 1
	}
	return exitCode
}

// exitCode lets serve report the spec's distinction between init failure
// (1) and serve failure (3) without cobra's RunE collapsing both to the
// same path.
var exitCode int

type serveArgs struct {
	user, group string
	flog        bool
	socketDir   string
	makeSockDir bool
	ownSockDir  bool
	configPath  string
}

func serve(args serveArgs) error {
	cfg, err := config.Load(args.configPath)
	if err != nil {
		exitCode = 1
		return err
	}
	if args.user != "" {
		cfg.User = args.user
	}
	if args.group != "" {
		cfg.Group = args.group
	}
	if args.socketDir != "" {
		cfg.SocketPath = args.socketDir + "/" + defaultSocketBase
	}
	cfg.MakeSockDir = cfg.MakeSockDir || args.makeSockDir
	cfg.OwnSockDir = cfg.OwnSockDir || args.ownSockDir

	log := logrus.StandardLogger()
	if args.flog {
		log.SetLevel(logrus.DebugLevel)
	}
	log.WithField("socket", cfg.SocketPath).Info("starting security-managerd")

	uid, gid := -1, -1
	if cfg.User != "" {
		uid, err = sysutil.ResolveUID(cfg.User)
		if err != nil {
			exitCode = 1
			return err
		}
	}
	if cfg.Group != "" {
		gid, err = sysutil.ResolveGID(cfg.Group)
		if err != nil {
			exitCode = 1
			return err
		}
	}

	socketDir := defaultSocketDir
	if args.socketDir != "" {
		socketDir = args.socketDir
	}
	if cfg.MakeSockDir && socketDir != "" && socketDir[0] != '@' {
		ownUID, ownGID := -1, -1
		if cfg.OwnSockDir {
			ownUID, ownGID = uid, gid
		}
		if err := sockdir.Ensure(socketDir, true, cfg.OwnSockDir, ownUID, ownGID); err != nil {
			exitCode = 1
			return err
		}
	}

	if err := pidfile.Create("security-managerd", defaultPidFile); err != nil {
		log.WithError(err).Warn("could not create pidfile")
	}
	defer pidfile.Destroy(defaultPidFile)

	if gid >= 0 {
		if err := dropGid(gid); err != nil {
			exitCode = 1
			return err
		}
	}
	if uid >= 0 {
		if err := dropUid(uid); err != nil {
			exitCode = 1
			return err
		}
	}
	if err := capability.ClearAll(); err != nil {
		log.WithError(err).Warn("could not clear capability sets")
	}

	fs := afero.NewOsFs()
	backends := selectBackends(fs, cfg, log)
	orch := orchestrator.New(log, backends...)

	spec := "unix:" + cfg.SocketPath
	server, err := protocol.Listen(spec, func() *dispatch.Session {
		return dispatch.NewSession(app.New(log), orch)
	}, log)
	if err != nil {
		exitCode = 1
		return err
	}

	log.Info("security_manager_server_create success")
	if err := server.Serve(); err != nil {
		exitCode = 3
		return err
	}
	exitCode = 0
	return nil
}

// selectBackends wires the SELinux and/or SMACK backend depending on which
// MAC module the running kernel enforces (internal/hostmount), consumed
// abstractly by the orchestrator (spec §9 "Polymorphism over backends").
func selectBackends(fs afero.Fs, cfg config.Config, log logrus.FieldLogger) []backend.Installer {
	active, err := hostmount.DetectBackend()
	if err != nil {
		log.WithError(err).Warn("could not detect active MAC backend")
	}

	var backends []backend.Installer
	switch active {
	case hostmount.SELinux:
		backends = append(backends, selinuxbackend.New(fs, selinuxbackend.Config{RulesDir: cfg.PolicyDir}, log))
	case hostmount.SMACK:
		backends = append(backends, smackbackend.New(fs, smackbackend.Config{RulesDir: cfg.RulesDir}, log))
	default:
		log.Warn("no active MAC backend detected, running with both selinux and smack backends best-effort")
		backends = append(backends,
			selinuxbackend.New(fs, selinuxbackend.Config{RulesDir: cfg.PolicyDir}, log),
			smackbackend.New(fs, smackbackend.Config{RulesDir: cfg.RulesDir}, log),
		)
	}
	return backends
}

// dropGid/dropUid mirror the original daemon's setgid(2)/setuid(2) calls,
// which must run in that order (group before user) while the process
// still holds CAP_SETGID/CAP_SETUID.
func dropGid(gid int) error {
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("can not change group: %w", err)
	}
	return nil
}

func dropUid(uid int) error {
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("can not change user: %w", err)
	}
	return nil
}
