package ui

import (
	"context"

	"github.com/pleasantmill/millctl/point"
)

// Dummy is a no-op Model for headless or bench builds that have no LCD
// or buttons attached, in the shape of the teacher's platform_dummy.go
// stub Platform.
type Dummy struct{}

func (Dummy) LivePosition() point.FloatPoint    { return point.FloatPoint{} }
func (Dummy) CancelAndClearQueue()              {}
func (Dummy) EmergencyStop()                    {}
func (Dummy) ZeroX(ctx context.Context) error   { return nil }
func (Dummy) ZeroY(ctx context.Context) error   { return nil }
func (Dummy) ZeroZ(ctx context.Context) error   { return nil }
func (Dummy) ManualToolChange(tool int)         {}
