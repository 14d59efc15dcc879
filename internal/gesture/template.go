package gesture

import (
	"math"
	"sort"
	"sync"

	"github.com/ayusman/mudra/internal/landmark"
)

// Template is a stored reference pose for one gesture label.
type Template struct {
	ID        string             // Unique identifier for the template
	Name      string             // Human-readable name
	Label     Label              // Gesture the pose stands for
	Landmarks []landmark.Point3D // Normalized landmarks
	Tolerance float64            // Maximum distance for a match
}

// Match represents a matching result between input and a template.
type Match struct {
	Template *Template
	Score    float64 // 0-1, higher is better
	Distance float64 // Summed Euclidean distance between input and template
}

// TemplateClassifier classifies frames by nearest stored template. It is
// safe for concurrent use: templates may be replaced while the pipeline runs.
type TemplateClassifier struct {
	mu        sync.RWMutex
	templates []*Template
}

// NewTemplateClassifier creates a TemplateClassifier with the given templates.
func NewTemplateClassifier(templates ...*Template) *TemplateClassifier {
	c := &TemplateClassifier{}
	for _, t := range templates {
		c.AddTemplate(t)
	}
	return c
}

// AddTemplate adds a template. Templates without landmarks are ignored.
func (c *TemplateClassifier) AddTemplate(t *Template) {
	if t == nil || len(t.Landmarks) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = append(c.templates, t)
}

// RemoveTemplate removes a template by its ID.
func (c *TemplateClassifier) RemoveTemplate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.templates {
		if t.ID == id {
			c.templates = append(c.templates[:i], c.templates[i+1:]...)
			return
		}
	}
}

// Replace swaps the whole template set.
func (c *TemplateClassifier) Replace(templates []*Template) {
	kept := make([]*Template, 0, len(templates))
	for _, t := range templates {
		if t != nil && len(t.Landmarks) > 0 {
			kept = append(kept, t)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = kept
}

// Len returns the number of templates.
func (c *TemplateClassifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// Match returns templates within tolerance of the hand, best first.
func (c *TemplateClassifier) Match(hand *landmark.HandLandmarks) []Match {
	normalized := hand.Normalize()
	if normalized == nil {
		return nil
	}
	input := normalized.Points[:]

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []Match
	for _, t := range c.templates {
		distance := summedDistance(input, t.Landmarks)
		if distance <= t.Tolerance {
			matches = append(matches, Match{
				Template: t,
				Score:    1.0 / (1.0 + distance),
				Distance: distance,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Classify implements Classifier using the best template match. Frames that
// match no template classify as NONE with zero confidence.
func (c *TemplateClassifier) Classify(frame landmark.Frame) (Raw, error) {
	if !frame.HandPresent {
		return Raw{Label: None}, nil
	}
	if err := frame.Validate(); err != nil {
		return Raw{Label: None}, err
	}

	hand := landmark.HandLandmarks{Handedness: frame.Handedness, Score: frame.Score}
	copy(hand.Points[:], frame.Keypoints)

	matches := c.Match(&hand)
	if len(matches) == 0 {
		return Raw{Label: None}, nil
	}
	best := matches[0]
	return Raw{Label: best.Template.Label, Confidence: best.Score}, nil
}

// summedDistance sums the distances between corresponding points.
func summedDistance(a, b []landmark.Point3D) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return math.Inf(1)
	}

	var total float64
	for i := 0; i < n; i++ {
		total += a[i].Dist(b[i])
	}
	return total
}
