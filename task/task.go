package task

import "time"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusMusicReady Status = "music_ready"
	StatusMixing     Status = "mixing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type MusicCandidate struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Image string `json:"image,omitempty"`
}

type Task struct {
	ID              string           `json:"task_id"`
	Status          Status           `json:"status"`
	Filename        string           `json:"filename,omitempty"`
	VideoObjectName string           `json:"video_object_name,omitempty"`
	MusicURL        string           `json:"music_url,omitempty"`
	MusicList       []MusicCandidate `json:"music_list,omitempty"`
	FinalVideoURL   string           `json:"final_video_url,omitempty"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
