package primary

import "kvmhost/internal/keys"

// DefaultJumpZoneSize is the width in pixels of a hot edge.
const DefaultJumpZoneSize = 1

// Zone describes the hot edges of the primary screen.
type Zone struct {
	Sides  keys.Sides
	Width  int32
	Height int32
	Size   int32
}

// Hit returns the enabled edges whose zone contains (x, y). A point in a
// corner may hit two edges.
func (z Zone) Hit(x, y int32) keys.Sides {
	size := z.Size
	if size <= 0 {
		size = DefaultJumpZoneSize
	}

	var hit keys.Sides
	if z.Sides&keys.LeftSide != 0 && x < size {
		hit |= keys.LeftSide
	}
	if z.Sides&keys.RightSide != 0 && x >= z.Width-size {
		hit |= keys.RightSide
	}
	if z.Sides&keys.TopSide != 0 && y < size {
		hit |= keys.TopSide
	}
	if z.Sides&keys.BottomSide != 0 && y >= z.Height-size {
		hit |= keys.BottomSide
	}
	return hit
}
