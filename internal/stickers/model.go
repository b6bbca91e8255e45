package stickers

// Sticker is an overlay image offered in the palette.
type Sticker struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	ImageURL string   `json:"image_url"`
	// Width and Height are the suggested draw size; 0 means natural size.
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Custom bool `json:"custom"`
}
