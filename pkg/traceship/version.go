package traceship

// Version is the library version reported in the User-Agent header.
const Version = "0.1.0"

// UserAgent returns the User-Agent sent with every ingestion request.
func UserAgent() string {
	return "traceship/" + Version + " (Go)"
}
