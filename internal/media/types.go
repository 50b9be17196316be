package media

// AccountMedia is one media record as returned by the platform
type AccountMedia struct {
	ID        string   `json:"id"`
	AccountID string   `json:"accountId"`
	PreviewID string   `json:"previewId,omitempty"`
	Access    bool     `json:"access"`
	Media     *Details `json:"media,omitempty"`
	Preview   *Details `json:"preview,omitempty"`
}

// Details describes one rendition family of a media record
type Details struct {
	ID        string     `json:"id"`
	CreatedAt int64      `json:"createdAt"`
	MIME      string     `json:"mimetype"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
	Locations []Location `json:"locations"`
	Variants  []Variant  `json:"variants"`
}

// Location is a download location with optional access metadata
type Location struct {
	Location string            `json:"location"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Variant is an alternative resolution of a media record
type Variant struct {
	ID        string     `json:"id"`
	MIME      string     `json:"mimetype"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
	Locations []Location `json:"locations"`
}

// Bundle groups several account media records
type Bundle struct {
	ID              string   `json:"id"`
	AccountID       string   `json:"accountId"`
	AccountMediaIDs []string `json:"accountMediaIds"`
	CreatedAt       int64    `json:"createdAt"`
}
