package events

import (
	"strconv"
	"strings"

	"lendingpool/core/types"
)

// TypeModulePaused is emitted whenever an admin pauses or resumes a module.
const TypeModulePaused = "module.paused"

// ModulePaused records a pause flag change.
type ModulePaused struct {
	Module string
	Paused bool
	Actor  string
}

func (ModulePaused) EventType() string { return TypeModulePaused }

// Event renders the structured pause event for downstream consumers.
func (e ModulePaused) Event() *types.Event {
	return &types.Event{
		Type: TypeModulePaused,
		Attributes: map[string]string{
			"module": strings.ToLower(strings.TrimSpace(e.Module)),
			"paused": strconv.FormatBool(e.Paused),
			"actor":  e.Actor,
		},
	}
}

// Render converts any emitted event into its structured form. Events that
// carry no structured rendering are reported with their type only.
func Render(evt Event) *types.Event {
	switch v := evt.(type) {
	case nil:
		return nil
	case *types.Event:
		return v
	case types.Event:
		return &v
	case interface{ Event() *types.Event }:
		return v.Event()
	default:
		return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	}
}
