package controller

import "github.com/mhbvr/shutter"

const (
	PromptHeader = "Photos"

	OptionDelete = "Delete"
	OptionCancel = "Cancel"
)

// Role tells a UI how to present a prompt option.
type Role int

const (
	RoleDefault Role = iota
	RoleDestructive
	RoleCancel
)

func (r Role) String() string {
	switch r {
	case RoleDestructive:
		return "destructive"
	case RoleCancel:
		return "cancel"
	default:
		return "default"
	}
}

type PromptOption struct {
	Text string
	Role Role
	Icon string
}

// Prompt is a confirmation shown for a single photo.
type Prompt struct {
	Header   string
	Options  []PromptOption
	Record   shutter.Record
	Position int
}

func newDeletePrompt(rec shutter.Record, position int) Prompt {
	return Prompt{
		Header: PromptHeader,
		Options: []PromptOption{
			{Text: OptionDelete, Role: RoleDestructive, Icon: "trash"},
			{Text: OptionCancel, Role: RoleCancel, Icon: "close"},
		},
		Record:   rec,
		Position: position,
	}
}

// Option looks up an option by its text.
func (p Prompt) Option(text string) (PromptOption, bool) {
	for _, o := range p.Options {
		if o.Text == text {
			return o, true
		}
	}
	return PromptOption{}, false
}
