package common

import "errors"

// ErrModulePaused is returned by Guard when the operator has paused the
// named module.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the operator pause switches consulted before every
// mutating native-module operation.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the module is paused. A nil view or
// empty module name always passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
