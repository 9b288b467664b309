// Package image downloads filesystem images and extracts them into
// per-task root directories.
//
// An image is a tar archive (optionally gzip compressed) whose extracted
// contents form the root filesystem for a jailed process. Images are
// fetched from file, http or https URLs, staged under a caller supplied
// staging directory and extracted into a freshly named directory there.
// Extraction directories are never removed automatically.
package image

import (
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/sirupsen/logrus"
)

// client follows redirects; the URL reported by Fetch is the one the
// final response was served from.
var client = &http.Client{}

// Fetch retrieves the archive at imageURL and returns its content
// together with the URL it actually resolved to after any redirects.
// The caller owns the returned reader. A single attempt is made; there
// is no retry.
func Fetch(imageURL string) (io.ReadCloser, *url.URL, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, nil, &FetchError{URL: imageURL, Err: err}
	}

	switch u.Scheme {
	case "file", "":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, nil, &FetchError{URL: imageURL, Err: err}
		}
		return f, u, nil

	default:
		resp, err := client.Get(imageURL)
		if err != nil {
			return nil, nil, &FetchError{URL: imageURL, Err: err}
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			resp.Body.Close()
			return nil, nil, &FetchError{URL: imageURL, StatusCode: resp.StatusCode}
		}
		logrus.WithFields(logrus.Fields{
			"url":      imageURL,
			"resolved": resp.Request.URL.String(),
		}).Debug("fetched image")
		return resp.Body, resp.Request.URL, nil
	}
}
