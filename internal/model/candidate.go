package model

// ScanMethod tells how a review count was discovered.
type ScanMethod string

const (
	// ScanMethodAccessibility means the count came from the accessibility tree.
	ScanMethodAccessibility ScanMethod = "uia"

	// ScanMethodOCR means the count came from OCR text of a viewport capture.
	// OCR results carry no clickable element.
	ScanMethodOCR ScanMethod = "ocr"
)

// Candidate is a listing found during a scroll pass.
// Candidates live only between the scan and the tab opening of one page.
type Candidate struct {
	// Target is the clickable element that opens the listing.
	Target *Element `json:"target"`

	// Reviews is the review count extracted from the listing.
	Reviews int `json:"reviews"`

	// Method is how the review count was found.
	Method ScanMethod `json:"method"`

	// Pass is the zero-based scroll pass that first saw the candidate.
	Pass int `json:"pass"`
}

// Key returns the identity used to deduplicate candidates.
func (c Candidate) Key() string {
	if c.Target == nil {
		return ""
	}
	return c.Target.ID
}

// ReviewRange is an inclusive range of accepted review counts.
type ReviewRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether min <= count <= max.
func (r ReviewRange) Contains(count int) bool {
	return count >= r.Min && count <= r.Max
}
