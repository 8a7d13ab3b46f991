package calib

import "fmt"

// CaptureErrorCode enumerates the recoverable calibration failures.
// Every code carries the measured value and the threshold it violated
// so the operator can see how far off the capture was.
type CaptureErrorCode string

const (
	ErrExcessiveMovement         CaptureErrorCode = "excessive_movement"
	ErrWeakGravitySignal         CaptureErrorCode = "weak_gravity_signal"
	ErrNoPendingCalibration      CaptureErrorCode = "no_pending_calibration"
	ErrInsufficientSamples       CaptureErrorCode = "insufficient_samples"
	ErrEdgeHoldsTooSimilar       CaptureErrorCode = "edge_holds_too_similar"
	ErrAxisNearVertical          CaptureErrorCode = "axis_near_vertical"
	ErrRollAxisTooCloseToGravity CaptureErrorCode = "roll_axis_too_close_to_gravity"
	ErrStationaryCheckFailed     CaptureErrorCode = "stationary_check_failed"
	ErrGyroBiasTooHigh           CaptureErrorCode = "gyro_bias_too_high"
)

// CaptureError is returned by the capture phases. It is always
// recoverable: the caller restarts the offending capture step.
type CaptureError struct {
	Code      CaptureErrorCode
	Measured  float64
	Threshold float64
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("calibration capture failed: %s (measured %.4f, threshold %.4f)",
		e.Code, e.Measured, e.Threshold)
}

func captureErr(code CaptureErrorCode, measured, threshold float64) *CaptureError {
	return &CaptureError{Code: code, Measured: measured, Threshold: threshold}
}

// AsCaptureError unwraps err into a *CaptureError if it is one.
func AsCaptureError(err error) (*CaptureError, bool) {
	ce, ok := err.(*CaptureError)
	return ce, ok
}
