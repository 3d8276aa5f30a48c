package main

import (
	"context"
	"fmt"
	"path"
	"slices"
	"sort"
	"sync"
	"time"

	ftpsh "github.com/Paranoid-AF/ftpsh"
	"github.com/Paranoid-AF/ftpsh/host"
)

// FTP server states reported by "status".
const (
	stateRunning = "running"
	statePaused  = "paused"
	stateStopped = "stopped"
)

// Modules whose operations the simulator serves.
const (
	moduleConnections = "connections"
	moduleTLS         = "tls"
	moduleFS          = "fs"
)

// Simulator is an in-memory FTP server answering the administration
// operations. It keeps no sockets of its own.
type Simulator struct {
	address  string
	simple   []string
	extended []string
	started  time.Time
	now      func() time.Time

	mu     sync.Mutex
	state  string
	conns  map[string]ftpsh.Connection
	tree   map[string][]ftpsh.DirEntry
	tls    ftpsh.TLSStatus
	nextID int
}

// NewSimulator returns a running simulated server exposing the given modules
// and seeded with a few connections and directories.
func NewSimulator(cfg ftpsh.HostConfig) *Simulator {
	now := time.Now()
	s := &Simulator{
		address:  cfg.Address,
		simple:   slices.Clone(cfg.SimpleModules),
		extended: slices.Clone(cfg.ExtendedModules),
		started:  now,
		now:      time.Now,
		state:    stateRunning,
		conns:    make(map[string]ftpsh.Connection),
		tree: map[string][]ftpsh.DirEntry{
			"/": {
				{Name: "pub", Dir: true, Mtime: now.Add(-72 * time.Hour).Format(time.RFC3339)},
				{Name: "incoming", Dir: true, Mtime: now.Add(-24 * time.Hour).Format(time.RFC3339)},
				{Name: "README", Size: 412, Mtime: now.Add(-720 * time.Hour).Format(time.RFC3339)},
			},
			"/pub": {
				{Name: "release.tar.gz", Size: 18_874_368, Mtime: now.Add(-48 * time.Hour).Format(time.RFC3339)},
				{Name: "SHA256SUMS", Size: 96, Mtime: now.Add(-48 * time.Hour).Format(time.RFC3339)},
			},
			"/incoming": {},
		},
		tls: ftpsh.TLSStatus{
			Enabled:  true,
			Subject:  "CN=ftp.example.org",
			NotAfter: now.AddDate(0, 3, 0).Format("2006-01-02"),
		},
	}
	s.Connect("203.0.113.7:50122", "anonymous")
	s.Connect("198.51.100.23:61004", "deploy")
	return s
}

// Connect adds a simulated client connection and returns its ID.
func (s *Simulator) Connect(remoteAddr, user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("c%d", s.nextID)
	s.conns[id] = ftpsh.Connection{
		ID:         id,
		RemoteAddr: remoteAddr,
		User:       user,
		Since:      s.now().UTC().Format(time.RFC3339),
	}
	return id
}

// Register installs the simulator's operations on srv. Operations of modules
// the simulator does not expose are left unregistered.
func (s *Simulator) Register(srv *host.Server) {
	srv.Handle(ftpsh.OpListSimpleModules, func(context.Context, []string) (any, error) {
		return s.simple, nil
	})
	srv.Handle(ftpsh.OpListExtendedModules, func(context.Context, []string) (any, error) {
		return s.extended, nil
	})
	srv.Handle(ftpsh.OpStatus, s.status)
	srv.Handle(ftpsh.OpPause, s.transition(statePaused, stateRunning))
	srv.Handle(ftpsh.OpContinue, s.transition(stateRunning, statePaused))
	srv.Handle(ftpsh.OpStop, s.stop)
	srv.Handle(ftpsh.OpSimpleModuleInfo, s.simpleInfo)
	srv.Handle(ftpsh.OpExtendedModuleInfo, s.extendedInfo)

	if s.exposes(moduleConnections) {
		srv.Handle(ftpsh.OpListConnections, s.listConnections)
		srv.Handle(ftpsh.OpCloseConnection, s.closeConnection)
	}
	if s.exposes(moduleTLS) {
		srv.Handle(ftpsh.OpTLSStatus, func(context.Context, []string) (any, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.tls, nil
		})
	}
	if s.exposes(moduleFS) {
		srv.Handle(ftpsh.OpListDirectory, s.listDirectory)
	}
}

func (s *Simulator) exposes(module string) bool {
	return slices.Contains(s.simple, module) || slices.Contains(s.extended, module)
}

func (s *Simulator) status(context.Context, []string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ftpsh.Status{
		State:       s.state,
		Address:     s.address,
		Connections: len(s.conns),
		Uptime:      s.now().Sub(s.started).Round(time.Second).String(),
	}, nil
}

// transition moves the server to target when it is in from.
func (s *Simulator) transition(target, from string) host.HandlerFunc {
	return func(context.Context, []string) (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch s.state {
		case target:
			return nil, nil
		case from:
			s.state = target
			return nil, nil
		}
		return nil, &ftpsh.Error{Code: "invalid_state", Message: fmt.Sprintf("server is %s", s.state)}
	}
}

func (s *Simulator) stop(context.Context, []string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateStopped
	clear(s.conns)
	return nil, nil
}

func (s *Simulator) listConnections(context.Context, []string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedConnections(), nil
}

func (s *Simulator) sortedConnections() []ftpsh.Connection {
	conns := make([]ftpsh.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	return conns
}

func (s *Simulator) closeConnection(_ context.Context, args []string) (any, error) {
	if len(args) != 1 {
		return nil, &ftpsh.Error{Code: "invalid_args", Message: "close-connection takes one connection id"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[args[0]]; !ok {
		return nil, &ftpsh.Error{Code: "not_found", Message: "no connection " + args[0]}
	}
	delete(s.conns, args[0])
	return nil, nil
}

func (s *Simulator) simpleInfo(_ context.Context, args []string) (any, error) {
	if len(args) != 1 || !slices.Contains(s.simple, args[0]) {
		return nil, unknownModule(args)
	}
	switch args[0] {
	case moduleFS:
		return map[string]string{"root": "/srv/ftp", "writable": "/incoming"}, nil
	case "authentication":
		return map[string]string{"method": "anonymous", "users": "anonymous,deploy"}, nil
	}
	return map[string]string{"module": args[0]}, nil
}

func (s *Simulator) extendedInfo(_ context.Context, args []string) (any, error) {
	if len(args) != 1 || !slices.Contains(s.extended, args[0]) {
		return nil, unknownModule(args)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch args[0] {
	case moduleConnections:
		lines := []string{fmt.Sprintf("%d open", len(s.conns))}
		for _, c := range s.sortedConnections() {
			lines = append(lines, fmt.Sprintf("%s %s %s", c.ID, c.RemoteAddr, c.User))
		}
		return lines, nil
	case moduleTLS:
		return []string{"subject " + s.tls.Subject, "not after " + s.tls.NotAfter}, nil
	}
	return []string{args[0]}, nil
}

func unknownModule(args []string) error {
	if len(args) != 1 {
		return &ftpsh.Error{Code: "invalid_args", Message: "expected one module name"}
	}
	return &ftpsh.Error{Code: "unknown_module", Message: "no module " + args[0]}
}

func (s *Simulator) listDirectory(_ context.Context, args []string) (any, error) {
	dir := "/"
	if len(args) > 0 {
		dir = path.Clean("/" + args[0])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.tree[dir]
	if !ok {
		return nil, &ftpsh.Error{Code: "not_found", Message: "no such directory: " + dir}
	}
	return slices.Clone(entries), nil
}
