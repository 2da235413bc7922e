package domain

// NoCodec is the provider's sentinel for a stream without video or audio.
const NoCodec = "none"

// StreamDescriptor is one raw format entry reported by the provider.
type StreamDescriptor struct {
	FormatID        string
	VideoCodec      string
	Ext             string
	ResolutionLabel string
}

// HasVideo reports whether the descriptor carries a video stream.
func (d StreamDescriptor) HasVideo() bool {
	return d.VideoCodec != "" && d.VideoCodec != NoCodec
}

// ProviderInfo is the result of an info-only provider query.
type ProviderInfo struct {
	Title     string
	Thumbnail string
	URL       string
	Formats   []StreamDescriptor
}

// CatalogEntry is a user-facing format choice.
type CatalogEntry struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution"`
	Ext        string `json:"ext"`
}

// VideoMetadata is returned by the catalog endpoint.
type VideoMetadata struct {
	Title     string         `json:"title"`
	Thumbnail string         `json:"thumbnail"`
	Formats   []CatalogEntry `json:"formats"`
	URL       string         `json:"url"`
}
