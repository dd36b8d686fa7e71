package models

// BoundingBox is a detection rectangle in pixel coordinates (xyxy).
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

type Detection struct {
	Class      string      `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// DetectionResult is the decoded reply from the detection endpoint.
// Transient: held for one display cycle, never persisted.
type DetectionResult struct {
	Response   string      `json:"response,omitempty"`
	Detections []Detection `json:"detections,omitempty"`
	// AnnotatedImage is the server-rendered image with boxes drawn,
	// returned as a data URL.
	AnnotatedImage string `json:"annotated_image,omitempty"`
}
