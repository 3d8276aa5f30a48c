// Package admin provides the FTP server administration commands of ftpsh.
// Each command is an independent unit registered explicitly by Register.
package admin

import (
	"context"
	"fmt"

	ftpsh "github.com/Paranoid-AF/ftpsh"
	"github.com/Paranoid-AF/ftpsh/capability"
	"github.com/Paranoid-AF/ftpsh/command"
)

// Capabilities some commands depend on.
const (
	CapConnections = "connections"
	CapTLS         = "tls"
	CapFileSystem  = "fs"
)

// HintConnections is the hint kind holding connection IDs seen by "connections".
const HintConnections = "connections"

// Register adds every administration command to r.
func Register(r *command.Registry) {
	r.MustRegister(
		&command.Command{
			Name: "status",
			Help: "Show the FTP server state",
			Run:  runStatus,
		},
		remoteAction("pause", "Stop accepting new FTP connections", ftpsh.OpPause),
		remoteAction("continue", "Accept new FTP connections again", ftpsh.OpContinue),
		remoteAction("stop", "Stop the FTP server listener", ftpsh.OpStop),
		&command.Command{
			Name: "modules",
			Help: "List the modules the server exposed when the shell connected",
			Run:  runModules,
		},
		&command.Command{
			Name:  "show",
			Help:  "Show information reported by a module",
			Usage: "show <module>",
			Run:   runShow,
			Args:  moduleArgs,
		},
		&command.Command{
			Name:     "connections",
			Help:     "List open FTP connections",
			Requires: CapConnections,
			Run:      runConnections,
		},
		&command.Command{
			Name:     "close",
			Help:     "Close an FTP connection",
			Usage:    "close <id>",
			Requires: CapConnections,
			Run:      runClose,
			Args:     connectionArgs,
		},
		&command.Command{
			Name:     "tls-status",
			Help:     "Show the TLS certificate in use",
			Requires: CapTLS,
			Run:      runTLSStatus,
		},
		&command.Command{
			Name:     "dir",
			Help:     "List a directory of the server file system",
			Usage:    "dir [path]",
			Requires: CapFileSystem,
			Run:      runDir,
		},
	)
}

// remoteAction builds an argument-less command that calls operation and
// reports success.
func remoteAction(name, help, operation string) *command.Command {
	return &command.Command{
		Name: name,
		Help: help,
		Run: func(ctx context.Context, env *command.Env) (any, error) {
			if len(env.Args) > 0 {
				return nil, ftpsh.Usagef(name, "takes no arguments")
			}
			if err := env.Remote.Invoke(ctx, operation, nil, nil); err != nil {
				return nil, err
			}
			return "ok", nil
		},
	}
}

func runStatus(ctx context.Context, env *command.Env) (any, error) {
	if len(env.Args) > 0 {
		return nil, ftpsh.Usagef("status", "takes no arguments")
	}
	var st ftpsh.Status
	if err := env.Remote.Invoke(ctx, ftpsh.OpStatus, nil, &st); err != nil {
		return nil, err
	}
	return st, nil
}

// ModuleList is the result of "modules".
type ModuleList struct {
	Simple   []string `json:"simple" yaml:"simple" toml:"simple"`
	Extended []string `json:"extended" yaml:"extended" toml:"extended"`
}

func runModules(_ context.Context, env *command.Env) (any, error) {
	caps := env.Caps()
	return ModuleList{Simple: caps.Simple(), Extended: caps.Extended()}, nil
}

func runShow(ctx context.Context, env *command.Env) (any, error) {
	if len(env.Args) != 1 {
		return nil, ftpsh.Usagef("show", "usage: show <module>")
	}
	module := env.Args[0]
	tier, ok := env.Caps().Tier(module)
	if !ok {
		return nil, ftpsh.Usagef("show", "module %q is not exposed by the server", module)
	}

	switch tier {
	case capability.Simple:
		var info map[string]string
		if err := env.Remote.Invoke(ctx, ftpsh.OpSimpleModuleInfo, []string{module}, &info); err != nil {
			return nil, err
		}
		return info, nil
	default:
		var lines []string
		if err := env.Remote.Invoke(ctx, ftpsh.OpExtendedModuleInfo, []string{module}, &lines); err != nil {
			return nil, err
		}
		return lines, nil
	}
}

func moduleArgs(active *command.ActiveSet, _ *command.Hints, pos int) []string {
	if pos != 0 {
		return nil
	}
	return active.Caps().All()
}

func runConnections(ctx context.Context, env *command.Env) (any, error) {
	if len(env.Args) > 0 {
		return nil, ftpsh.Usagef("connections", "takes no arguments")
	}
	var conns []ftpsh.Connection
	if err := env.Remote.Invoke(ctx, ftpsh.OpListConnections, nil, &conns); err != nil {
		return nil, err
	}
	ids := make([]string, len(conns))
	for i, c := range conns {
		ids[i] = c.ID
	}
	env.Hints.Remember(HintConnections, ids)
	if len(conns) == 0 {
		return "no open connections", nil
	}
	return conns, nil
}

func runClose(ctx context.Context, env *command.Env) (any, error) {
	if len(env.Args) != 1 {
		return nil, ftpsh.Usagef("close", "usage: close <id>")
	}
	id := env.Args[0]
	if err := env.Remote.Invoke(ctx, ftpsh.OpCloseConnection, []string{id}, nil); err != nil {
		return nil, err
	}
	return fmt.Sprintf("connection %s closed", id), nil
}

func connectionArgs(_ *command.ActiveSet, hints *command.Hints, pos int) []string {
	if pos != 0 {
		return nil
	}
	return hints.Recall(HintConnections)
}

func runTLSStatus(ctx context.Context, env *command.Env) (any, error) {
	if len(env.Args) != 0 {
		return nil, ftpsh.Usagef("tls-status", "takes no arguments")
	}
	var st ftpsh.TLSStatus
	if err := env.Remote.Invoke(ctx, ftpsh.OpTLSStatus, nil, &st); err != nil {
		return nil, err
	}
	return st, nil
}

func runDir(ctx context.Context, env *command.Env) (any, error) {
	if len(env.Args) > 1 {
		return nil, ftpsh.Usagef("dir", "usage: dir [path]")
	}
	var entries []ftpsh.DirEntry
	if err := env.Remote.Invoke(ctx, ftpsh.OpListDirectory, env.Args, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
