package command

import (
	"context"
	"fmt"

	ftpsh "github.com/Paranoid-AF/ftpsh"
)

// RegisterBuiltins registers the capability-less shell commands help, exit
// and quit.
func RegisterBuiltins(r *Registry) {
	r.MustRegister(
		&Command{
			Name:  "help",
			Help:  "List available commands or show the usage of one",
			Usage: "help [command]",
			Run:   runHelp,
			Args: func(active *ActiveSet, _ *Hints, pos int) []string {
				if pos != 0 {
					return nil
				}
				return active.Names()
			},
		},
		&Command{
			Name: "exit",
			Help: "Close the session",
			Run:  runExit,
		},
		&Command{
			Name: "quit",
			Help: "Close the session",
			Run:  runExit,
		},
	)
}

func runHelp(_ context.Context, env *Env) (any, error) {
	switch len(env.Args) {
	case 0:
		lines := make([]string, 0, env.Active.Len())
		for _, cmd := range env.Active.Commands() {
			lines = append(lines, fmt.Sprintf("%-24s %s", cmd.UsageLine(), cmd.Help))
		}
		return lines, nil
	case 1:
		name := env.Args[0]
		cmd, ok := env.Active.Lookup(name)
		if !ok {
			suggestion, _ := env.Active.Suggest(name)
			return nil, &ftpsh.UnknownCommandError{Name: name, Suggestion: suggestion}
		}
		lines := []string{"usage: " + cmd.UsageLine(), cmd.Help}
		if cmd.Requires != "" {
			lines = append(lines, "requires: "+cmd.Requires)
		}
		return lines, nil
	default:
		return nil, ftpsh.Usagef("help", "expected at most one argument, got %d", len(env.Args))
	}
}

func runExit(_ context.Context, env *Env) (any, error) {
	if len(env.Args) > 0 {
		return nil, ftpsh.Usagef("exit", "takes no arguments")
	}
	return nil, ErrExit
}
