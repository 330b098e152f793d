package pipeline

import (
	"fmt"

	"taxoclean/internal/model"
)

// Locatorer turns a result locator into a retrievable URL.
type Locatorer interface {
	DownloadURL(locator string) string
}

// Publication is the stable reference to a finished artifact. Both fields
// stay valid and constant for the lifetime of the job they were published
// for; the transfer itself is a separate step.
type Publication struct {
	Locator string
	URL     string
}

// Publish exposes the artifact reference for a job that reached Ready.
func Publish(l Locatorer, j model.Job) (Publication, error) {
	if j.State != model.StateReady {
		return Publication{}, fmt.Errorf("job %q is %s, not ready", j.JobID, j.State)
	}
	if j.ResultLocator == "" {
		return Publication{}, fmt.Errorf("job %q is ready but has no result locator", j.JobID)
	}
	return Publication{
		Locator: j.ResultLocator,
		URL:     l.DownloadURL(j.ResultLocator),
	}, nil
}
