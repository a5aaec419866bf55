package spotify

// Wire shapes for the music-platform API, limited to the fields the
// pipeline consumes. The upstream schema is treated as an abstract JSON API.

// Image is a profile or cover image reference.
type Image struct {
	URL string `json:"url"`
}

// UserRef is the abbreviated user object embedded in playlists and tracks.
type UserRef struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	ExternalURLs map[string]string `json:"external_urls"`
	Images       []Image           `json:"images"`
}

// ProfileURL returns the canonical public profile URL, falling back to the
// open.spotify.com form when external_urls is absent.
func (u UserRef) ProfileURL() string {
	if u.ExternalURLs != nil && u.ExternalURLs["spotify"] != "" {
		return u.ExternalURLs["spotify"]
	}
	return "https://open.spotify.com/user/" + u.ID
}

// User is the full public user profile.
type User struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	ExternalURLs map[string]string `json:"external_urls"`
	Images       []Image           `json:"images"`
	Followers    struct {
		Total int `json:"total"`
	} `json:"followers"`
}

// ArtistRef is the abbreviated artist object embedded in tracks.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Artist is the full artist object.
type Artist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Genres       []string          `json:"genres"`
	Images       []Image           `json:"images"`
	ExternalURLs map[string]string `json:"external_urls"`
	Followers    struct {
		Total int `json:"total"`
	} `json:"followers"`
}

// Playlist is a playlist object from search, user-playlists, or get-by-id.
type Playlist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	ExternalURLs map[string]string `json:"external_urls"`
	Owner        *UserRef          `json:"owner"`
}

// Track is the track object embedded in playlist track items.
type Track struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Artists []ArtistRef `json:"artists"`
}

// TrackItem is one entry in a playlist's track listing. AddedBy identifies
// the contributor who placed the track in the playlist, when exposed.
type TrackItem struct {
	Track   *Track   `json:"track"`
	AddedBy *UserRef `json:"added_by"`
}

// TracksPage is one page of a playlist's tracks.
type TracksPage struct {
	Items []TrackItem `json:"items"`
	Total int         `json:"total"`
}

// PlaylistsPage is one page of playlists.
type PlaylistsPage struct {
	Items []Playlist `json:"items"`
	Total int        `json:"total"`
}

type searchResponse struct {
	Playlists PlaylistsPage `json:"playlists"`
}
