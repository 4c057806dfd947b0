package youtube

import (
	"github.com/google/go-querystring/query"
)

const watchBaseURL = "https://www.youtube.com/watch"

// WatchLinkOptions are the optional query parameters of a watch link.
type WatchLinkOptions struct {
	VideoID      string `url:"v"`
	StartSeconds int    `url:"t,omitempty"`
	PlaylistID   string `url:"list,omitempty"`
}

// WatchURL builds the public watch link for an uploaded video.
func WatchURL(videoID string) string {
	return WatchURLWithOptions(WatchLinkOptions{VideoID: videoID})
}

// ObjectURL implements the platform contract's public link scheme.
func (c *Client) ObjectURL(platformObjectID string) string {
	return WatchURL(platformObjectID)
}

// WatchURLWithOptions builds a watch link with extra query parameters.
func WatchURLWithOptions(opts WatchLinkOptions) string {
	values, err := query.Values(opts)
	if err != nil || opts.VideoID == "" {
		return ""
	}
	return watchBaseURL + "?" + values.Encode()
}
