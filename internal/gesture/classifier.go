package gesture

import (
	"fmt"
	"math"

	"github.com/ayusman/mudra/internal/landmark"
)

// Classifier maps a single frame to a raw gesture label. Implementations
// must be deterministic and free of side effects.
type Classifier interface {
	Classify(frame landmark.Frame) (Raw, error)
}

// RuleConfig holds the geometric thresholds of the RuleClassifier. All
// distances are relative to the palm size (wrist to middle finger MCP).
type RuleConfig struct {
	// ExtensionRatio is the fingertip-to-wrist over MCP-to-wrist ratio above
	// which a finger counts as extended.
	ExtensionRatio float64
	// ThumbRatio is the thumb-tip-to-wrist distance above which the thumb
	// counts as extended.
	ThumbRatio float64
	// ThumbDirection is the vertical thumb tip offset from its MCP needed to
	// call the thumb up or down.
	ThumbDirection float64
	// PinchRatio is the thumb-tip-to-index-tip distance below which the two
	// touch.
	PinchRatio float64
	// SpreadRatio is the index/middle tip spread over their MCP spread above
	// which the two fingers form a V.
	SpreadRatio float64
}

// DefaultRuleConfig returns thresholds tuned for MediaPipe landmarks.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		ExtensionRatio: 1.4,
		ThumbRatio:     1.4,
		ThumbDirection: 0.5,
		PinchRatio:     0.3,
		SpreadRatio:    1.7,
	}
}

// RuleClassifier recognises gestures from finger extension, thumb direction
// and fingertip distances.
//
// Decision order:
//  1. thumb and index tips touching, other three fingers extended -> PINCH
//  2. four fingers curled: thumb up -> SCROLL_UP, down -> SCROLL_DOWN, else DRAG
//  3. index and middle extended: spread -> POINT, together -> DOUBLE_CLICK
//  4. middle only -> CLICK, index only -> RIGHT_CLICK
//  5. anything else -> NONE
type RuleClassifier struct {
	cfg RuleConfig
}

// NewRuleClassifier creates a RuleClassifier. Zero thresholds fall back to
// DefaultRuleConfig values.
func NewRuleClassifier(cfg RuleConfig) *RuleClassifier {
	def := DefaultRuleConfig()
	if cfg.ExtensionRatio <= 0 {
		cfg.ExtensionRatio = def.ExtensionRatio
	}
	if cfg.ThumbRatio <= 0 {
		cfg.ThumbRatio = def.ThumbRatio
	}
	if cfg.ThumbDirection <= 0 {
		cfg.ThumbDirection = def.ThumbDirection
	}
	if cfg.PinchRatio <= 0 {
		cfg.PinchRatio = def.PinchRatio
	}
	if cfg.SpreadRatio <= 0 {
		cfg.SpreadRatio = def.SpreadRatio
	}
	return &RuleClassifier{cfg: cfg}
}

var fingerMCPs = [4]int{landmark.IndexMCP, landmark.MiddleMCP, landmark.RingMCP, landmark.PinkyMCP}

const (
	fIndex = iota
	fMiddle
	fRing
	fPinky
)

// Classify implements Classifier.
func (c *RuleClassifier) Classify(frame landmark.Frame) (Raw, error) {
	if !frame.HandPresent {
		return Raw{Label: None}, nil
	}
	if err := frame.Validate(); err != nil {
		return Raw{Label: None}, err
	}

	wrist := frame.Point(landmark.Wrist)
	palm := wrist.Dist2D(frame.Point(landmark.MiddleMCP))
	if palm < 1e-6 {
		return Raw{Label: None}, fmt.Errorf("%w: degenerate palm", landmark.ErrInvalidFrame)
	}

	var extended [4]bool
	clarity := 1.0
	for i, mcp := range fingerMCPs {
		base := wrist.Dist2D(frame.Point(mcp))
		if base < 1e-9 {
			return Raw{Label: None}, fmt.Errorf("%w: degenerate finger %d", landmark.ErrInvalidFrame, i)
		}
		ratio := wrist.Dist2D(frame.Point(mcp+3)) / base
		extended[i] = ratio > c.cfg.ExtensionRatio
		clarity = math.Min(clarity, margin(ratio, c.cfg.ExtensionRatio))
	}

	score := frame.Score
	if score <= 0 {
		score = 1
	}
	result := func(l Label) (Raw, error) {
		return Raw{Label: l, Confidence: clamp01(score * clarity)}, nil
	}

	thumbTip := frame.Point(landmark.ThumbTip)
	indexTip := frame.Point(landmark.IndexTip)

	if thumbTip.Dist2D(indexTip)/palm < c.cfg.PinchRatio &&
		extended[fMiddle] && extended[fRing] && extended[fPinky] {
		return Raw{Label: Pinch, Confidence: clamp01(score)}, nil
	}

	switch {
	case !extended[fIndex] && !extended[fMiddle] && !extended[fRing] && !extended[fPinky]:
		return result(c.thumbGesture(frame, wrist, palm))

	case extended[fIndex] && extended[fMiddle] && !extended[fRing] && !extended[fPinky]:
		tipSpread := indexTip.Dist2D(frame.Point(landmark.MiddleTip))
		baseSpread := frame.Point(landmark.IndexMCP).Dist2D(frame.Point(landmark.MiddleMCP))
		if baseSpread > 1e-9 && tipSpread/baseSpread > c.cfg.SpreadRatio {
			return result(Point)
		}
		return result(DoubleClick)

	case !extended[fIndex] && extended[fMiddle] && !extended[fRing] && !extended[fPinky]:
		return result(Click)

	case extended[fIndex] && !extended[fMiddle] && !extended[fRing] && !extended[fPinky]:
		return result(RightClick)
	}

	return result(None)
}

// thumbGesture classifies a closed hand by where the thumb points.
func (c *RuleClassifier) thumbGesture(frame landmark.Frame, wrist landmark.Point3D, palm float64) Label {
	tip := frame.Point(landmark.ThumbTip)
	if wrist.Dist2D(tip)/palm <= c.cfg.ThumbRatio {
		return Drag
	}
	dy := (tip.Y - frame.Point(landmark.ThumbMCP).Y) / palm
	switch {
	case dy < -c.cfg.ThumbDirection:
		return ScrollUp
	case dy > c.cfg.ThumbDirection:
		return ScrollDown
	}
	return Drag
}

// margin scores how far ratio sits from threshold: 0 on the boundary, 1 at
// half the threshold away or more.
func margin(ratio, threshold float64) float64 {
	return math.Min(1, math.Abs(ratio-threshold)/(threshold*0.5))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
