package export

// EDLRequest is the body of an EDL export. Scenes are exported in the order
// given; an empty title falls back to DefaultTitle.
type EDLRequest struct {
	Title     string   `json:"title,omitempty"`
	FrameRate float64  `json:"frame_rate,omitempty"`
	SceneIDs  []string `json:"scene_ids"`
}

// SRTRequest selects transcripts either directly or through their scenes.
// VideoID exports every transcript of one video.
type SRTRequest struct {
	Title         string   `json:"title,omitempty"`
	FrameRate     float64  `json:"frame_rate,omitempty"`
	VideoID       string   `json:"video_id,omitempty"`
	SceneIDs      []string `json:"scene_ids,omitempty"`
	TranscriptIDs []string `json:"transcript_ids,omitempty"`
}

// Result is an export rendered for download.
type Result struct {
	Filename   string   `json:"filename"`
	Content    string   `json:"-"`
	Events     int      `json:"events"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// Clip is one scene resolved against its video.
type Clip struct {
	SceneID         string
	VideoID         string
	Filename        string
	StartTimecode   string
	EndTimecode     string
	TimecodeOffset  string
	DurationSeconds float64
}

// Event is a clip placed on the record timeline. All times are seconds.
type Event struct {
	Number    int
	Reel      string
	ClipName  string
	SceneID   string
	VideoID   string
	SourceIn  float64
	SourceOut float64
	RecordIn  float64
	RecordOut float64

	// sceneStart is the un-offset scene start, used to place transcripts.
	sceneStart float64
}

// Cue is a transcript segment to be written as an SRT entry.
type Cue struct {
	SceneID       string
	VideoID       string
	StartTimecode string
	EndTimecode   string
	Text          string
}
