package types

// CreateRequest creates a hosted project.
type CreateRequest struct {
	HTML        string `json:"html"`
	CSS         string `json:"css"`
	JS          string `json:"js"`
	Library     string `json:"library"`
	ProjectName string `json:"projectName"`
	Tags        Tags   `json:"tags"`
}

// Buffers converts the request body into a BufferSet.
func (r CreateRequest) Buffers() BufferSet {
	return BufferSet{Markup: r.HTML, Style: r.CSS, Script: r.JS, Library: r.Library}
}

// UpdateRequest partially updates a hosted project. Nil fields are left unchanged.
type UpdateRequest struct {
	HTML        *string `json:"html"`
	CSS         *string `json:"css"`
	JS          *string `json:"js"`
	Library     *string `json:"library"`
	ProjectName *string `json:"projectName"`
	Tags        Tags    `json:"tags"`
}

// ComposeRequest asks for the composed preview document.
type ComposeRequest struct {
	BufferSet
	Instrument *bool `json:"instrument,omitempty"`
}

// RunRequest asks for a headless sandbox run of a buffer set.
type RunRequest struct {
	BufferSet
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// ShareRequest asks for a share token and link. Only the shareable fields
// of the embedded buffer set are encoded.
type ShareRequest struct {
	BufferSet
	Base   string `json:"base,omitempty"`
	Legacy bool   `json:"legacy,omitempty"`
}

// ShareDecodeRequest carries a token, or a full share link, to decode.
type ShareDecodeRequest struct {
	Code string `json:"code"`
	URL  string `json:"url,omitempty"`
}

// WSMessage is a frame on the console stream.
type WSMessage struct {
	Type    string     `json:"type"`
	Kind    string     `json:"kind,omitempty"`
	Text    string     `json:"text,omitempty"`
	Seq     int        `json:"seq,omitempty"`
	Buffers *BufferSet `json:"buffers,omitempty"`
	Message string     `json:"message,omitempty"`
	RunID   string     `json:"runId,omitempty"`
}

// ExportRequest asks for a ZIP archive of an unsaved buffer set.
type ExportRequest struct {
	BufferSet
	ProjectName string `json:"projectName"`
}
