package ospackage

// PackageInfo is what the fetcher records for one acquired extension.
// It holds only value fields so copies never share state.
type PackageInfo struct {
	ID        string `json:"id"`         // e.g. "aapocclcgogkmnckokdopfmhonfmgoek"
	Name      string `json:"name"`       // manifest name, may be a __MSG_ placeholder
	Version   string `json:"version"`    // e.g. "1.0.2.3"
	UpdateURL string `json:"update_url"` // gupdate manifest location
	Path      string `json:"path"`       // unpacked extension directory
}
