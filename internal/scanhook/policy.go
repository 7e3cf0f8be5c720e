// Package scanhook turns media server item events into forced metadata replacements.
package scanhook

import (
	"slices"

	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/events"
	"github.com/saltyorg/easierlife/internal/library"
)

// Mode is the hook state derived from the current flags
type Mode int

const (
	// ModeDisabled ignores every event
	ModeDisabled Mode = iota
	// ModeExplicit replaces on additions and on updates caused by a metadata download
	ModeExplicit
	// ModeAggressive replaces on additions and on updates with any allow-listed reason
	ModeAggressive
)

func (m Mode) String() string {
	switch m {
	case ModeExplicit:
		return "explicit"
	case ModeAggressive:
		return "aggressive"
	default:
		return "disabled"
	}
}

// ModeFor derives the hook mode from the behavior flags
func ModeFor(p config.Plugin) Mode {
	switch {
	case !p.ReplaceAllMetadata:
		return ModeDisabled
	case p.ForceMetadataRefresh:
		return ModeAggressive
	default:
		return ModeExplicit
	}
}

// Policy decides which events trigger a replacement
type Policy struct {
	Mode              Mode
	AggressiveReasons []library.UpdateReason
}

// PolicyFor builds the policy for the given flags and hook settings
func PolicyFor(p config.Plugin, h config.HookSettings) Policy {
	return Policy{
		Mode:              ModeFor(p),
		AggressiveReasons: h.AggressiveReasons,
	}
}

// ShouldReplace reports whether the event triggers a metadata replacement
func (p Policy) ShouldReplace(e events.ItemEvent) bool {
	if p.Mode == ModeDisabled {
		return false
	}
	switch e.Type {
	case events.ItemAdded:
		return true
	case events.ItemUpdated:
		if p.Mode == ModeExplicit {
			return e.Reason == library.ReasonMetadataDownload
		}
		return slices.Contains(p.AggressiveReasons, e.Reason)
	default:
		return false
	}
}
