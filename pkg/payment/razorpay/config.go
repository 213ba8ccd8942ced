package razorpay

// Config represents the configuration for the Razorpay client
type Config struct {
	// KeyID is the public key id, also handed to the checkout widget
	KeyID string

	// KeySecret signs API calls and widget callbacks
	KeySecret string

	// BaseURL is the Razorpay API base URL
	BaseURL string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.KeyID == "" {
		return ErrInvalidRequest
	}
	if c.KeySecret == "" {
		return ErrInvalidRequest
	}
	if c.BaseURL == "" {
		return ErrInvalidRequest
	}
	return nil
}
