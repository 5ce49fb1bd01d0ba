package fs

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notetaker/pkg/core"
)

// frontmatter is the YAML header written above every note body.
type frontmatter struct {
	ID      string `yaml:"id"`
	Created int64  `yaml:"created"` // Unix nanoseconds, drives listing order
	Updated int64  `yaml:"updated,omitempty"`
}

// record is a decoded note file.
type record struct {
	Note    core.Note
	Created int64
	Updated int64 // Unix nanoseconds of the last Update, zero if never updated
}

// encodeNote renders a note as Markdown with a YAML frontmatter header.
func encodeNote(rec record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(frontmatter{ID: rec.Note.ID, Created: rec.Created, Updated: rec.Updated}); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	buf.WriteString(rec.Note.Text)
	return buf.Bytes(), nil
}

// decodeNote parses a note file. Files without frontmatter (written by hand)
// take fallbackID as ID and fallbackCreated as creation time.
func decodeNote(data []byte, fallbackID string, fallbackCreated int64) (record, error) {
	rec := record{Note: core.Note{ID: fallbackID}, Created: fallbackCreated}

	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		rec.Note.Text = string(data)
		return rec, nil
	}

	rest := data[3:]
	parts := bytes.SplitN(rest, []byte("\n---"), 2)
	if len(parts) == 1 {
		return record{}, errors.New("frontmatter started but no closing delimiter found")
	}

	var fm frontmatter
	if err := yaml.Unmarshal(parts[0], &fm); err != nil {
		return record{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if fm.ID != "" {
		rec.Note.ID = fm.ID
	}
	if fm.Created != 0 {
		rec.Created = fm.Created
	}
	rec.Updated = fm.Updated

	body := strings.TrimPrefix(string(parts[1]), "\r")
	body = strings.TrimPrefix(body, "\n")
	rec.Note.Text = body
	return rec, nil
}
