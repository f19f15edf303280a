// Package ui defines the boundary between the motion-control core and
// the LCD/button user interface, which is out of scope for this
// module per its external-collaborator design: only the interface the
// core exposes, plus a headless no-op implementation, live here.
package ui

import (
	"context"

	"github.com/pleasantmill/millctl/point"
)

// Model is the surface the core exposes to a UI: live position
// reporting, queue control, homing and manual tool change. A concrete
// UI (LCD menus, buttons) is built on top of this and is not part of
// this module.
type Model interface {
	LivePosition() point.FloatPoint
	CancelAndClearQueue()
	EmergencyStop()
	ZeroX(ctx context.Context) error
	ZeroY(ctx context.Context) error
	ZeroZ(ctx context.Context) error
	ManualToolChange(tool int)
}
