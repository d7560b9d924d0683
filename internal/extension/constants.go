package extension

import "github.com/ayusman/camerabridge/internal/capture"

// Constants returns the values scripts see as module fields.
func Constants() map[string]int {
	return map[string]int{
		"CAMERA_TYPE_FRONT": int(capture.CameraTypeFront),
		"CAMERA_TYPE_BACK":  int(capture.CameraTypeBack),

		"CAPTURE_QUALITY_LOW":    int(capture.QualityLow),
		"CAPTURE_QUALITY_MEDIUM": int(capture.QualityMedium),
		"CAPTURE_QUALITY_HIGH":   int(capture.QualityHigh),

		"CAMERA_STARTED":                   int(capture.MessageStarted),
		"CAMERA_STOPPED":                   int(capture.MessageStopped),
		"CAMERA_NOT_PERMITTED":             int(capture.MessageNotPermitted),
		"CAMERA_ERROR":                     int(capture.MessageError),
		"CAMERA_SHOW_PERMISSION_RATIONALE": int(capture.MessageShowPermissionRationale),
	}
}
