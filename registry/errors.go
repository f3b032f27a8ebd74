package registry

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrNotRegistered         = errors.New("module not registered")
	ErrDuplicateReady        = errors.New("duplicate ready signal")
	ErrUnknownTarget         = errors.New("process manager unavailable")
	ErrNotReady              = errors.New("module not ready")
	ErrModuleFaulted         = errors.New("module faulted")
	ErrInvalidModule         = errors.New("invalid module identity")
	ErrInvalidHandle         = errors.New("invalid module handle")
	ErrNoSuchExport          = errors.New("no such export")
)

// Operations named in a ProtocolError.
const (
	OpRegister = "register"
	OpReady    = "signal ready"
	OpAcquire  = "acquire"
)

// ProtocolError reports a handshake failure for one module.
type ProtocolError struct {
	Op     string
	Module ModuleID
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Module, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolErr(op string, id ModuleID, err error) *ProtocolError {
	return &ProtocolError{Op: op, Module: id, Err: err}
}
