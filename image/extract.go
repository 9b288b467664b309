package image

import (
	"encoding/hex"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/moby/go-archive"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Extract writes r to a staged archive file <stagingDir>/<name>, extracts
// it into a new directory <stagingDir>/<stem of name><random hex suffix>
// and removes the staged file. The random suffix makes it safe to extract
// the same image into the same staging directory repeatedly.
//
// The staged file is removed only after extraction succeeds; on failure
// it is left in place and an *ExtractError is returned. The extraction
// directory is owned by the caller and never removed by this package.
func Extract(r io.Reader, stagingDir, name string) (string, error) {
	staged := filepath.Join(stagingDir, name)
	if err := stage(r, staged); err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	dir := filepath.Join(stagingDir, stem+uniqueSuffix())
	if err := untar(staged, dir); err != nil {
		return "", &ExtractError{Archive: staged, Err: err}
	}

	if err := os.Remove(staged); err != nil {
		return "", &ExtractError{Archive: staged, Err: err}
	}
	logrus.WithFields(logrus.Fields{
		"archive": name,
		"root":    dir,
	}).Debug("extracted image")
	return dir, nil
}

// Pull is the creation-path convenience: fetch imageURL and extract it
// under stagingDir, returning the extraction directory. The staged file
// name derives from the resolved URL, so a redirecting URL names its
// directory after the redirect target.
func Pull(imageURL, stagingDir string) (string, error) {
	body, resolved, err := Fetch(imageURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	return Extract(body, stagingDir, path.Base(resolved.Path))
}

func stage(r io.Reader, staged string) error {
	f, err := os.Create(staged)
	if err != nil {
		return &ExtractError{Archive: staged, Err: err}
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &ExtractError{Archive: staged, Err: errors.Wrap(err, "staging archive")}
	}
	return nil
}

func untar(staged, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.Open(staged)
	if err != nil {
		return err
	}
	defer f.Close()

	// Untar detects gzip compression from the stream itself.
	return archive.Untar(f, dir, nil)
}

// uniqueSuffix returns 128 bits of randomness as 32 hex characters.
func uniqueSuffix() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
