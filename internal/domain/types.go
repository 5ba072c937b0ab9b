package domain

import "time"

// Camera is a registered image source. Token is nil until the camera is
// provisioned or its token rotated; such a camera cannot authenticate.
type Camera struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	Location  *string   `json:"location"`
	Token     *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DetectionEvent is one accepted report from a camera.
type DetectionEvent struct {
	ID        int64            `json:"id"`
	CamID     string           `json:"cam_id"`
	Camera    *Camera          `json:"camera,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	ImgPath   string           `json:"image_path"`
	CreatedAt time.Time        `json:"-"`
	Objects   []DetectedObject `json:"objects"`
}

// DetectedObject is a stored object belonging to a DetectionEvent. Details
// holds every attribute the camera sent beyond the fixed fields; it is nil
// when there were none.
type DetectedObject struct {
	ID               int64          `json:"-"`
	DetectionEventID int64          `json:"-"`
	ObjID            string         `json:"obj_id"`
	Type             string         `json:"type"`
	Lat              float64        `json:"lat"`
	Lng              float64        `json:"lng"`
	Objective        string         `json:"objective"`
	Size             string         `json:"size"`
	Details          map[string]any `json:"details"`
}

// ImageInfo describes the stored, normalized image of a detection.
type ImageInfo struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
	URL          string `json:"url"`
}

// DetectionResult is returned to the submitting camera and broadcast to
// viewers of the camera's topic.
type DetectionResult struct {
	EventID   int64          `json:"event_id"`
	CamID     string         `json:"cam_id"`
	Camera    *Camera        `json:"camera"`
	Objects   []ObjectReport `json:"objects"`
	Timestamp time.Time      `json:"timestamp"`
	Image     ImageInfo      `json:"image"`
}
