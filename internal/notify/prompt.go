package notify

import "github.com/charmbracelet/huh"

// TerminalPrompter asks for alert permission with an interactive confirm
// before the main program takes over the terminal.
type TerminalPrompter struct{}

var _ Prompter = (*TerminalPrompter)(nil)

// NewTerminalPrompter returns the interactive prompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// Ask runs a one-question confirm form.
func (p *TerminalPrompter) Ask() (bool, error) {
	var granted bool
	err := huh.NewConfirm().
		Title("Show desktop notifications?").
		Description("The portal can alert you about appointments and bills.").
		Affirmative("Allow").
		Negative("Don't allow").
		Value(&granted).
		Run()
	if err != nil {
		return false, err
	}
	return granted, nil
}
