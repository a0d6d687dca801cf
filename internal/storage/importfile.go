package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/runnerr0/revsearch/internal/history"
)

// importFile is the JSON document accepted by ParseImportFile.
type importFile struct {
	Location    string               `json:"location"`
	Path        string               `json:"path"`
	IsContainer bool                 `json:"is_container"`
	Revisions   []importFileRevision `json:"revisions"`
}

type importFileRevision struct {
	ID         int       `json:"id"`
	Owner      string    `json:"owner"`
	Timestamp  time.Time `json:"timestamp"`
	Comment    string    `json:"comment"`
	ServerPath string    `json:"server_path"`
	Ref        string    `json:"ref"`
	Content    *string   `json:"content"`
}

// ParseImportFile decodes an exported history document. Revisions without
// a server_path inherit the item path.
func ParseImportFile(r io.Reader) (*ImportRequest, error) {
	var doc importFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode import file: %w", err)
	}
	if doc.Location == "" {
		return nil, fmt.Errorf("import file: location is empty")
	}
	if doc.Path == "" {
		return nil, fmt.Errorf("import file: item path is empty")
	}

	req := &ImportRequest{
		Location:    doc.Location,
		Path:        doc.Path,
		IsContainer: doc.IsContainer,
		Revisions:   make([]ImportRevision, 0, len(doc.Revisions)),
	}
	for _, r := range doc.Revisions {
		serverPath := r.ServerPath
		if serverPath == "" {
			serverPath = doc.Path
		}
		ir := ImportRevision{
			Revision: history.Revision{
				ID:         r.ID,
				Owner:      r.Owner,
				Timestamp:  r.Timestamp,
				Comment:    r.Comment,
				ServerPath: serverPath,
				Ref:        r.Ref,
			},
		}
		if r.Content != nil {
			ir.Content = *r.Content
			ir.HasContent = true
		}
		req.Revisions = append(req.Revisions, ir)
	}
	return req, nil
}
