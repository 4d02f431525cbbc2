// Command security-manager-cmd is the interactive/one-shot client (spec §6
// "Client CLI"), grounded on main-security-manager-cmd.c's do_all/do_any
// REPL and one-shot dispatch.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	version  = "security-manager-cmd version 0.1\n"
	helpText = `
usage: security-manager-cmd [options]... [action [arguments]]

options:
	-s, --socket xxx      set the base xxx for sockets
	-e, --echo            print the evaluated command
	-h, --help            print this help and exit
	-v, --version         print the version and exit

When action is given, security-manager-cmd performs the action and exits.
Otherwise security-manager-cmd continuously read its input to get the actions.
For a list of actions type 'security-manager-cmd help'.

`
	defaultSocketPath = "/run/security-manager/security-manager.sock"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		socket      string
		echo        bool
		showVersion bool
	)

	cmd := &cobra.Command{
		Use:                "security-manager-cmd",
		Short:              "Client for the MAC policy installation daemon",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableFlagParsing: false,
		Args:               cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			if showVersion {
				fmt.Print(version)
				return nil
			}
			if socket == "" {
				socket = defaultSocketPath
			}
			return client(socket, echo, args)
		},
	}
	cmd.SetHelpTemplate(helpText)
	cmd.SetUsageTemplate(helpText)

	flags := cmd.Flags()
	flags.StringVarP(&socket, "socket", "s", "", "set the base xxx for sockets")
	flags.BoolVarP(&echo, "echo", "e", false, "print the evaluated command")
	flags.BoolVarP(&showVersion, "version", "v", false, "print the version and exit")

	exitCode := 0
	cmd.RunE = wrapExit(cmd.RunE, &exitCode)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

func wrapExit(inner func(*cobra.Command, []string) error, code *int) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) error {
		err := inner(c, args)
		if err != nil {
			*code = 1
		}
		return err
	}
}

// client connects to socket and either runs the one-shot batch in args (if
// non-empty, exiting 1 on the first negative-status reply) or drives an
// interactive REPL over stdin (main-security-manager-cmd.c's do_all).
func client(socket string, echo bool, args []string) error {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer conn.Close()

	// One scanner for the whole connection: a ';'-batch reads back several
	// reply blocks in sequence, and a fresh bufio.Scanner per read would
	// drop whatever it had already buffered from the previous one.
	reply := bufio.NewScanner(conn)

	if len(args) > 0 {
		return runBatch(conn, reply, echo, strings.Join(args, " "), true)
	}
	return runInteractive(conn, reply, echo)
}

// runBatch sends line (which may be a ';'-chained batch, spec §4.8) as a
// single wire line and reads back one reply block per sub-command the
// daemon actually ran. The daemon stops dispatching a batch at its first
// negative reply (internal/dispatch.DispatchBatch, stopOnError), so this
// stops reading at the same point; in one-shot mode it additionally exits
// 1, mirroring main-security-manager-cmd.c's do_all with quit=1.
func runBatch(conn net.Conn, reply *bufio.Scanner, echo bool, line string, oneShot bool) error {
	if echo {
		fmt.Println(line)
	}
	if err := sendLine(conn, line); err != nil {
		return err
	}
	for i, n := 0, countCommands(line); i < n; i++ {
		status, err := printReply(reply)
		if err != nil {
			return err
		}
		if status < 0 {
			if oneShot {
				os.Exit(1)
			}
			break
		}
	}
	return nil
}

// countCommands mirrors internal/dispatch.DispatchBatch's ';'-splitting so
// the client knows how many reply blocks a fully-successful batch produces.
func countCommands(line string) int {
	n := 0
	for _, cmd := range strings.Split(line, ";") {
		if len(strings.Fields(cmd)) > 0 {
			n++
		}
	}
	return n
}

func runInteractive(conn net.Conn, reply *bufio.Scanner, echo bool) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		if words[0] == "quit" {
			return nil
		}
		if err := runBatch(conn, reply, echo, line, false); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func sendLine(conn net.Conn, line string) error {
	_, err := fmt.Fprintf(conn, "%s\n", line)
	return err
}

// printReply reads one OK/ERR reply block (status line + body + blank
// line terminator, spec §4.9) off reply and echoes it to stdout.
func printReply(reply *bufio.Scanner) (int, error) {
	status := 0
	first := true
	for reply.Scan() {
		line := reply.Text()
		if line == "" {
			break
		}
		fmt.Println(line)
		if first {
			var prefix string
			fmt.Sscanf(line, "%s %d", &prefix, &status)
			first = false
		}
	}
	return status, reply.Err()
}
