// Package ftpsh defines the request/response types for the ftpsh IPC channel.
// Messages are JSON-encoded and sent over a Unix domain socket, one per line,
// strictly one request followed by one response.
package ftpsh

import "encoding/json"

// Operation names understood by the FTP server host.
const (
	OpListSimpleModules   = "list-simple-modules"
	OpListExtendedModules = "list-extended-modules"
	OpStatus              = "status"
	OpPause               = "pause"
	OpContinue            = "continue"
	OpStop                = "stop"
	OpListConnections     = "list-connections"
	OpCloseConnection     = "close-connection"
	OpSimpleModuleInfo    = "simple-module-info"
	OpExtendedModuleInfo  = "extended-module-info"
	OpTLSStatus           = "tls-status"
	OpListDirectory       = "list-directory"
)

// Request is sent from the shell to the host.
type Request struct {
	// RequestID is a per-connection incrementing identifier assigned by the shell.
	// The host echoes it back so the shell can detect a desynchronised stream.
	RequestID int `json:"request_id"`
	// SessionID identifies the shell session.
	SessionID string `json:"session_id,omitempty"`
	// Operation names the remote operation. The host is authoritative.
	Operation string `json:"operation"`
	// Args are the positional arguments of the operation.
	Args []string `json:"args,omitempty"`
}

// Response is sent from the host back to the shell.
type Response struct {
	// RequestID is echoed from the request.
	RequestID int `json:"request_id"`
	// Result is the operation's value. Absent when Error is set.
	Result json.RawMessage `json:"result,omitempty"`
	// Error is set when the host could not execute the operation.
	Error *Error `json:"error,omitempty"`
}

// Error describes a host-side failure returned to the shell.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "unknown_operation", "server_fault").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Status is the result of the "status" operation.
type Status struct {
	State       string `json:"state" yaml:"state" toml:"state"`
	Address     string `json:"address" yaml:"address" toml:"address"`
	Connections int    `json:"connections" yaml:"connections" toml:"connections"`
	Uptime      string `json:"uptime" yaml:"uptime" toml:"uptime"`
}

// Connection describes one client connection of the FTP server.
type Connection struct {
	ID         string `json:"id" yaml:"id" toml:"id"`
	RemoteAddr string `json:"remote_addr" yaml:"remote_addr" toml:"remote_addr"`
	User       string `json:"user,omitempty" yaml:"user,omitempty" toml:"user,omitempty"`
	Since      string `json:"since" yaml:"since" toml:"since"`
}

// TLSStatus is the result of the "tls-status" operation.
type TLSStatus struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Subject  string `json:"subject,omitempty" yaml:"subject,omitempty" toml:"subject,omitempty"`
	NotAfter string `json:"not_after,omitempty" yaml:"not_after,omitempty" toml:"not_after,omitempty"`
}

// DirEntry is one element of a "list-directory" result.
type DirEntry struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Dir   bool   `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
	Size  int64  `json:"size" yaml:"size" toml:"size"`
	Mtime string `json:"mtime,omitempty" yaml:"mtime,omitempty" toml:"mtime,omitempty"`
}
