// Package command parses the device's response commands and executes them.
package command

import "strings"

// Tokens the device embeds in its response body
const (
	RestartToken = "|RESET_SCRIPT"
	KillMarker   = "|KILL_PROCESS|"
)

// Kind is the command variant
type Kind int

const (
	None Kind = iota
	Restart
	Kill
)

func (k Kind) String() string {
	switch k {
	case Restart:
		return "restart"
	case Kill:
		return "kill"
	default:
		return "none"
	}
}

// Command is a parsed directive. Target is set only for Kill.
type Command struct {
	Kind   Kind
	Target string
}

// Parse extracts the command from a response body.
//
// A restart token anywhere wins over everything else. A kill marker takes
// the rest of the body as the process name; an empty name is ignored.
func Parse(body string) Command {
	if strings.Contains(body, RestartToken) {
		return Command{Kind: Restart}
	}

	_, name, found := strings.Cut(body, KillMarker)
	if !found {
		return Command{Kind: None}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Command{Kind: None}
	}
	return Command{Kind: Kill, Target: name}
}
