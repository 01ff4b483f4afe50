// Package identity holds the fixed constants the broker uses to impersonate
// the target chat application's Rich Presence endpoints. These are
// process-wide, read-only values: part of the wire contract, not
// configuration.
package identity

// Config mirrors the impersonated service's client config block.
type Config struct {
	CDNHost     string `json:"cdn_host"`
	APIEndpoint string `json:"api_endpoint"`
	Environment string `json:"environment"`
}

// User mirrors the impersonated service's bot user.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Bot           bool   `json:"bot"`
}

// ReadyPayload is the data block of the READY dispatch sent immediately
// after a successful handshake.
type ReadyPayload struct {
	V      int    `json:"v"`
	Config Config `json:"config"`
	User   User   `json:"user"`
}

// DefaultConfig and DefaultUser are the fixed impersonation values.
var (
	DefaultConfig = Config{
		CDNHost:     "cdn.discordapp.com",
		APIEndpoint: "//discord.com/api",
		Environment: "production",
	}
	DefaultUser = User{
		ID:            "961950517370097704",
		Username:      "drpc",
		Discriminator: "0000",
		Avatar:        "a_39e73cb4db97d204c41e5328c85dc993",
		Bot:           true,
	}
)

// Ready builds the canonical READY payload.
func Ready() ReadyPayload {
	return ReadyPayload{V: 1, Config: DefaultConfig, User: DefaultUser}
}
