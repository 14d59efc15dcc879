package capture

import (
	"context"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/landmark"
)

var (
	pointColor = color.RGBA{R: 0, G: 220, B: 90, A: 0}
	boneColor  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// bones are the landmark pairs drawn as the hand skeleton.
var bones = [][2]int{
	{landmark.Wrist, landmark.ThumbCMC}, {landmark.ThumbCMC, landmark.ThumbMCP},
	{landmark.ThumbMCP, landmark.ThumbIP}, {landmark.ThumbIP, landmark.ThumbTip},
	{landmark.Wrist, landmark.IndexMCP}, {landmark.IndexMCP, landmark.IndexPIP},
	{landmark.IndexPIP, landmark.IndexDIP}, {landmark.IndexDIP, landmark.IndexTip},
	{landmark.MiddleMCP, landmark.MiddlePIP}, {landmark.MiddlePIP, landmark.MiddleDIP},
	{landmark.MiddleDIP, landmark.MiddleTip},
	{landmark.RingMCP, landmark.RingPIP}, {landmark.RingPIP, landmark.RingDIP},
	{landmark.RingDIP, landmark.RingTip},
	{landmark.Wrist, landmark.PinkyMCP}, {landmark.PinkyMCP, landmark.PinkyPIP},
	{landmark.PinkyPIP, landmark.PinkyDIP}, {landmark.PinkyDIP, landmark.PinkyTip},
	{landmark.IndexMCP, landmark.MiddleMCP}, {landmark.MiddleMCP, landmark.RingMCP},
	{landmark.RingMCP, landmark.PinkyMCP},
}

// Preview holds the latest annotated camera frame as a JPEG for live
// viewers. Frames are only encoded while at least one viewer is watching.
type Preview struct {
	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	viewers int
	changed chan struct{}
}

// NewPreview creates an empty preview.
func NewPreview() *Preview {
	return &Preview{changed: make(chan struct{})}
}

// Watch registers a viewer. The returned func unregisters it.
func (p *Preview) Watch() func() {
	p.mu.Lock()
	p.viewers++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.viewers--
			p.mu.Unlock()
		})
	}
}

// Watching reports whether any viewer is registered.
func (p *Preview) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewers > 0
}

// Publish replaces the current frame and wakes every waiting viewer.
func (p *Preview) Publish(jpeg []byte) {
	p.mu.Lock()
	p.jpeg = jpeg
	p.seq++
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

// Next blocks until a frame newer than after is available and returns it
// with its sequence number.
func (p *Preview) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		p.mu.Lock()
		if p.seq > after {
			jpeg, seq := p.jpeg, p.seq
			p.mu.Unlock()
			return jpeg, seq, nil
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-changed:
		}
	}
}

// Render draws the hand of f over frame, encodes the result as JPEG and
// publishes it. It does nothing while nobody is watching.
func (p *Preview) Render(frame *gocv.Mat, f landmark.Frame) error {
	if !p.Watching() || frame == nil || frame.Empty() {
		return nil
	}

	img := frame.Clone()
	defer img.Close()
	if f.HandPresent && len(f.Keypoints) == landmark.NumLandmarks {
		drawHand(&img, f.Keypoints)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return err
	}
	defer buf.Close()

	p.Publish(append([]byte(nil), buf.GetBytes()...))
	return nil
}

func drawHand(img *gocv.Mat, points []landmark.Point3D) {
	w, h := float64(img.Cols()), float64(img.Rows())
	px := func(pt landmark.Point3D) image.Point {
		return image.Pt(int(pt.X*w), int(pt.Y*h))
	}

	for _, b := range bones {
		gocv.Line(img, px(points[b[0]]), px(points[b[1]]), boneColor, 2)
	}
	for _, pt := range points {
		gocv.Circle(img, px(pt), 4, pointColor, -1)
	}
}
