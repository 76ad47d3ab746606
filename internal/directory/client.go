package directory

// Client is one registered directory entry. Clients are immutable once stored;
// re-registration under the same token simply replaces the entry.
type Client struct {
	Name              string `json:"name"`
	RegistrationToken string `json:"registration_token"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// Valid reports whether the client carries every required field.
func (c Client) Valid() bool {
	return c.Name != "" && c.RegistrationToken != "" && c.ProfilePictureURL != ""
}
