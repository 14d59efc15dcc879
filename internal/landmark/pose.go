package landmark

// Thumb positions understood by Pose.
type Thumb int

const (
	ThumbTucked Thumb = iota
	ThumbSide
	ThumbUp
)

// Shape describes a synthetic hand pose. Extended fingers point up the
// image; curled fingers fold back over the palm.
type Shape struct {
	Index, Middle, Ring, Pinky bool
	// Spread separates the index and middle fingertips (V sign). Without it
	// the two fingers are held together.
	Spread bool
	Thumb  Thumb
	// Pinch bends the index toward the thumb until the tips touch.
	Pinch bool
	// Inverted rotates the whole hand 180 degrees around the palm centre.
	Inverted bool
}

// Common shapes used by the mock detector and by tests.
var (
	ShapeOpenPalm    = Shape{Index: true, Middle: true, Ring: true, Pinky: true, Spread: true, Thumb: ThumbSide}
	ShapeV           = Shape{Index: true, Middle: true, Spread: true}
	ShapeTwoClosed   = Shape{Index: true, Middle: true}
	ShapeMiddleOnly  = Shape{Middle: true}
	ShapeIndexOnly   = Shape{Index: true}
	ShapeFist        = Shape{}
	ShapeThumbsUp    = Shape{Thumb: ThumbUp}
	ShapeThumbsDown  = Shape{Thumb: ThumbUp, Inverted: true}
	ShapeOKPinch     = Shape{Middle: true, Ring: true, Pinky: true, Thumb: ThumbSide, Pinch: true}
	defaultHandScore = 0.95
)

// Pose builds a right hand in the given shape with the palm centre (middle
// finger MCP) at (cx, cy) in normalized camera space. The hand spans roughly
// 0.3 units vertically, so callers should keep cy within [0.2, 0.8].
func Pose(s Shape, cx, cy float64) HandLandmarks {
	var rel [NumLandmarks]Point3D

	rel[Wrist] = Point3D{0, 0.12, 0}

	mcps := map[int]Point3D{
		IndexMCP:  {0.05, 0, 0},
		MiddleMCP: {0, 0, 0},
		RingMCP:   {-0.045, 0.005, 0},
		PinkyMCP:  {-0.085, 0.02, 0},
	}

	indexLean, middleLean := 0.02, 0.0
	if s.Index && s.Middle {
		if s.Spread {
			indexLean, middleLean = 0.04, -0.03
		} else {
			indexLean, middleLean = -0.012, 0.012
		}
	}

	placeFinger(&rel, IndexMCP, mcps[IndexMCP], s.Index, indexLean)
	placeFinger(&rel, MiddleMCP, mcps[MiddleMCP], s.Middle, middleLean)
	placeFinger(&rel, RingMCP, mcps[RingMCP], s.Ring, -0.02)
	placeFinger(&rel, PinkyMCP, mcps[PinkyMCP], s.Pinky, -0.035)

	rel[ThumbCMC] = Point3D{0.04, 0.09, 0}
	rel[ThumbMCP] = Point3D{0.07, 0.06, 0}
	switch s.Thumb {
	case ThumbUp:
		rel[ThumbIP] = Point3D{0.075, -0.01, 0}
		rel[ThumbTip] = Point3D{0.08, -0.08, 0}
	case ThumbSide:
		rel[ThumbIP] = Point3D{0.11, 0.04, 0}
		rel[ThumbTip] = Point3D{0.15, 0.02, 0}
	default:
		rel[ThumbIP] = Point3D{0.07, 0.03, -0.02}
		rel[ThumbTip] = Point3D{0.04, 0.01, -0.03}
	}

	if s.Pinch {
		mcp := mcps[IndexMCP]
		rel[IndexPIP] = Point3D{mcp.X + 0.01, mcp.Y - 0.04, -0.01}
		rel[IndexDIP] = Point3D{mcp.X + 0.025, mcp.Y - 0.06, -0.02}
		rel[IndexTip] = Point3D{mcp.X + 0.035, mcp.Y - 0.065, -0.02}
		rel[ThumbIP] = Point3D{0.09, 0, -0.01}
		rel[ThumbTip] = Point3D{rel[IndexTip].X + 0.005, rel[IndexTip].Y + 0.005, -0.02}
	}

	h := HandLandmarks{Handedness: "Right", Score: defaultHandScore}
	for i, p := range rel {
		if s.Inverted {
			p.X, p.Y = -p.X, -p.Y
		}
		h.Points[i] = Point3D{X: cx + p.X, Y: cy + p.Y, Z: p.Z}
	}
	return h
}

func placeFinger(rel *[NumLandmarks]Point3D, mcpIdx int, mcp Point3D, extended bool, lean float64) {
	rel[mcpIdx] = mcp
	if extended {
		rel[mcpIdx+1] = Point3D{mcp.X + lean*0.4, mcp.Y - 0.05, 0}
		rel[mcpIdx+2] = Point3D{mcp.X + lean*0.7, mcp.Y - 0.095, 0}
		rel[mcpIdx+3] = Point3D{mcp.X + lean, mcp.Y - 0.14, 0}
		return
	}
	rel[mcpIdx+1] = Point3D{mcp.X, mcp.Y - 0.03, -0.03}
	rel[mcpIdx+2] = Point3D{mcp.X, mcp.Y - 0.01, -0.04}
	rel[mcpIdx+3] = Point3D{mcp.X, mcp.Y + 0.02, -0.02}
}
