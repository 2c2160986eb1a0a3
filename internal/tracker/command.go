package tracker

import "errors"

var ErrUnknownCommand = errors.New("unknown command")

// Command enumerates the control-surface operations.
type Command int

const (
	CmdReset Command = iota
	CmdEnable
	CmdDisable
)

func (c Command) String() string {
	switch c {
	case CmdReset:
		return "reset"
	case CmdEnable:
		return "enable"
	case CmdDisable:
		return "disable"
	}
	return "unknown"
}

// Do dispatches a control command to the tracker.
func (t *Tracker) Do(command Command) error {
	switch command {
	case CmdReset:
		t.Reset()
	case CmdEnable:
		t.Enable()
	case CmdDisable:
		t.Disable()
	default:
		return ErrUnknownCommand
	}
	return nil
}
