package forwarder

import "time"

// Modes reported to a Recorder.
const (
	ModeBuffered = "buffered"
	ModeStream   = "stream"
)

// Outcomes reported to a Recorder.
const (
	OutcomeLabelSuccess   = "success"
	OutcomeLabelFailed    = "failed"
	OutcomeLabelCancelled = "cancelled"
)

// Recorder receives forwarder measurements.
type Recorder interface {
	RequestFinished(mode, outcome string, latency time.Duration)
	Retry(category string)
	Failure(category string)
	StreamEvent()
	InFlight(n int)
}

type nopRecorder struct{}

func (nopRecorder) RequestFinished(string, string, time.Duration) {}
func (nopRecorder) Retry(string)                                  {}
func (nopRecorder) Failure(string)                                {}
func (nopRecorder) StreamEvent()                                  {}
func (nopRecorder) InFlight(int)                                  {}
