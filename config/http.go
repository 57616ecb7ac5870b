package config

// HTTPConfig defines the API listener. An empty Token disables bearer
// authentication.
type HTTPConfig struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
