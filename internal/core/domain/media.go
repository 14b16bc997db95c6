package domain

// FallbackCaption is stored when image analysis fails.
const FallbackCaption = "Could not generate caption."

// MediaInput is a file handed to a media analyser.
type MediaInput struct {
	// MediaType selects the analysis. Only images are analysed today.
	MediaType MediaType

	// Data is the raw file content.
	Data []byte

	// Filename is used for logging only.
	Filename string
}

// MediaAnalysis is the structured description of a media file.
type MediaAnalysis struct {
	// Description is a detailed caption of the content.
	Description string `json:"description"`

	// Tags are 3-5 keywords describing the content.
	Tags []string `json:"tags"`
}
