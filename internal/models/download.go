package models

// DownloadJob is the state of the single in-flight export.
type DownloadJob struct {
	ID              string `json:"id"`
	TrackID         string `json:"trackId"`
	Name            string `json:"name"`
	ProgressPercent int    `json:"progress"`
	Done            bool   `json:"done"`
	Failed          bool   `json:"failed"`
	Error           string `json:"error,omitempty"`
	Path            string `json:"path,omitempty"`
}

// Active reports whether the job still occupies the download slot's work phase.
func (j DownloadJob) Active() bool {
	return !j.Done && !j.Failed
}
