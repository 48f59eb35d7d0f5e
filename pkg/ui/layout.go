package ui

// Fixed rows around the transcript.
const (
	headerHeight  = 1
	statusHeight  = 1 // spinner / state line
	inputRows     = 3
	borderRows    = 2 // top and bottom border of a boxed section
	footerHeight  = 1
	minTranscript = 1
)

// LayoutManager splits the terminal between the screen sections.
type LayoutManager struct {
	width  int
	height int
}

// NewLayoutManager creates a new layout manager
func NewLayoutManager() *LayoutManager {
	return &LayoutManager{
		width:  80,
		height: 24,
	}
}

// SetSize updates the layout dimensions
func (lm *LayoutManager) SetSize(width, height int) {
	lm.width = width
	lm.height = height
}

// TranscriptHeight returns the rows inside the transcript box.
func (lm *LayoutManager) TranscriptHeight() int {
	h := lm.height - headerHeight - borderRows - statusHeight - (inputRows + borderRows) - footerHeight
	if h < minTranscript {
		return minTranscript
	}
	return h
}

// TranscriptWidth returns the columns inside the transcript box
// (border and one column of padding on each side).
func (lm *LayoutManager) TranscriptWidth() int {
	return max(lm.width-4, 1)
}

// InputWidth returns the columns inside the input box.
func (lm *LayoutManager) InputWidth() int {
	return max(lm.width-2, 1)
}

// GetDimensions returns current width and height
func (lm *LayoutManager) GetDimensions() (width, height int) {
	return lm.width, lm.height
}
