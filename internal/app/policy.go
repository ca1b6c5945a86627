package app

import "github.com/EmilioRXD/Chat-de-voz/internal/domain"

type PolicyAction int

const (
	NoAction PolicyAction = iota
	DropFrame
	KickConnection
)

// Policy decides what happens to a connection whose send buffer is full.
// Position and voice updates are at-most-once anyway; the next update
// supersedes a lost one, so dropping is the default.
type Policy interface {
	OnBackPressure(id domain.ConnectionID, err error) PolicyAction
}

type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.ConnectionID, error) PolicyAction { return DropFrame }
