package dispatch

// Config holds the delivery settings of an Engine.
type Config struct {
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
	// TrackingBaseURL is the public origin serving /track. The pixel is
	// omitted when it is empty.
	TrackingBaseURL string `json:"tracking_base_url"`
	TrackingPixel   bool   `json:"tracking_pixel"`
	ReadReceipt     bool   `json:"read_receipt"`
	RetryFailed     bool   `json:"retry_failed"`
	MaxRetries      int    `json:"max_retries"`
}

// DefaultMaxRetries applies when MaxRetries is not positive.
const DefaultMaxRetries = 3

func (c Config) maxRetries() int {
	if c.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}
