// Package ui defines how the chat controller reports progress to a front end.
package ui

// UI receives status changes, streamed reply fragments and informational
// lines from the chat controller.
type UI interface {
	UpdateStatus(status string)
	Stream(chunk string)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string) {}
func (s SilentUI) Stream(chunk string)        {}
func (s SilentUI) Log(msg string)             {}
