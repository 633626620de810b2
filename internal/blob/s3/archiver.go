package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// reportContentType is the MIME type attached to uploaded ledger reports.
const reportContentType = "text/csv; charset=utf-8"

// Archiver uploads rendered ledger reports to cold storage and lists
// previously archived ones. Each upload gets a unique key so repeated runs
// on the same day never overwrite each other.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
	}
}

// Archive uploads a rendered report body and returns the object key it was
// stored under.
//
//	reports/items/2025-01-31/9f2c...c1.csv
//	reports/months/2025-01-31/4a81...7e.csv
func (a *Archiver) Archive(ctx context.Context, kind string, at time.Time, body []byte) (string, error) {
	path := reportPath(kind, at)
	if err := a.writer.Put(ctx, path, bytes.NewReader(body), reportContentType); err != nil {
		return "", fmt.Errorf("s3blob: archive %s report: %w", kind, err)
	}
	return path, nil
}

// ListReports returns the keys of all archived reports of the given kind,
// oldest prefix first.
func (a *Archiver) ListReports(ctx context.Context, kind string) ([]string, error) {
	keys, err := a.reader.List(ctx, "reports/"+kind+"/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: list %s reports: %w", kind, err)
	}
	return keys, nil
}

func reportPath(kind string, at time.Time) string {
	return fmt.Sprintf("reports/%s/%s/%s.csv", kind, at.Format("2006-01-02"), uuid.NewString())
}
