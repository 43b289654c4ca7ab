package dto

// JSONAnimation describes an animated work's frame archive.
type JSONAnimation struct {
	// OriginalSrc is the URL of the ZIP archive holding the frames.
	OriginalSrc string `json:"originalSrc"`

	// Frames lists the archive members in playback order.
	Frames []JSONFrame `json:"frames"`
}

// JSONFrame is one frame entry: archive member name plus display time.
type JSONFrame struct {
	File  string `json:"file"`
	Delay int    `json:"delay"` // milliseconds
}
