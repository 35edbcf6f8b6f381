package model

// Media is the result of resolving a source link. It is either a Video or a
// PhotoSet; callers dispatch with a type switch.
type Media interface {
	MediaTitle() string
	MediaAudioURL() string
	isMedia()
}

// Video is a single playable clip.
type Video struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	AudioURL string `json:"audio_url"`
}

// PhotoSet is an ordered, non-empty slideshow sharing one title.
type PhotoSet struct {
	URLs     []string `json:"urls"`
	Title    string   `json:"title"`
	AudioURL string   `json:"audio_url"`
}

func (v Video) MediaTitle() string    { return v.Title }
func (v Video) MediaAudioURL() string { return v.AudioURL }
func (Video) isMedia()                {}

func (p PhotoSet) MediaTitle() string    { return p.Title }
func (p PhotoSet) MediaAudioURL() string { return p.AudioURL }
func (PhotoSet) isMedia()                {}
