package export

import (
	"context"
	"time"

	"github.com/archivecrawl/crawler/internal/fetchpipe"
	"github.com/archivecrawl/crawler/internal/storage"
	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/hashutil"
)

// Exporter writes a batch of fetchpipe.Result to one or more
// destinations. It owns no crawl state: Export is called once per
// batch (typically once per crawl, against the mapper's full result
// set) and is safe to call repeatedly with different destinations.
type Exporter struct {
	sink     telemetry.Sink
	storage  storage.Sink
	hashAlgo hashutil.HashAlgo
}

func NewExporter(sink telemetry.Sink, storageSink storage.Sink, hashAlgo hashutil.HashAlgo) *Exporter {
	return &Exporter{sink: sink, storage: storageSink, hashAlgo: hashAlgo}
}

// Export writes results to every destination, in order, and returns one
// Report per destination. A failure writing to one destination does not
// prevent the others from being attempted.
func (e *Exporter) Export(ctx context.Context, results []fetchpipe.Result, destinations []Destination) []Report {
	reports := make([]Report, 0, len(destinations))

	for _, destination := range destinations {
		written, errs := e.writeBatch(ctx, destination, results)
		report := Report{destination: destination, written: written, failed: len(errs), errors: errs}
		reports = append(reports, report)

		if e.sink != nil {
			for _, errMsg := range errs {
				e.sink.RecordError(time.Now(), "export", "Exporter.Export", telemetry.CauseStorageFailure, errMsg, []telemetry.Attribute{
					telemetry.NewAttr(telemetry.AttrField, string(destination.Format())),
				})
			}
			if written > 0 {
				e.sink.RecordArtifact(artifactKindFor(destination.Format()), destination.OutputDir(), nil)
			}
		}
	}

	return reports
}

func artifactKindFor(format Format) telemetry.ArtifactKind {
	switch format {
	case FormatJSON:
		return telemetry.ArtifactJSON
	case FormatCSV:
		return telemetry.ArtifactCSV
	case FormatParquet:
		return telemetry.ArtifactParquet
	default:
		return telemetry.ArtifactMarkdown
	}
}
