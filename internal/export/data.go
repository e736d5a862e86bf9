package export

/*
Responsibilities

- Consume a batch of completed fetches and write them to one or more
  destinations in the caller's requested formats
- Guarantee FetchResult serializability across every non-Markdown
  format: timestamps ISO-8601, content bytes hex-encoded
- Report per-destination counts and errors without failing the whole
  batch over one bad record

Markdown is the only format that writes one file per page (through
internal/storage, with frontmatter from internal/normalize); JSON, CSV,
and Parquet each write a single batch file per destination.
*/

// Format names one of the four export formats the pipeline recognizes.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatParquet  Format = "parquet"
)

// Destination is one output the caller wants results written to.
type Destination struct {
	format    Format
	outputDir string
}

func NewDestination(format Format, outputDir string) Destination {
	return Destination{format: format, outputDir: outputDir}
}

func (d Destination) Format() Format {
	return d.format
}

func (d Destination) OutputDir() string {
	return d.outputDir
}

// Report summarizes one destination's write outcome.
type Report struct {
	destination Destination
	written     int
	failed      int
	errors      []string
}

func (r Report) Destination() Destination {
	return r.destination
}

func (r Report) Written() int {
	return r.written
}

func (r Report) Failed() int {
	return r.failed
}

func (r Report) Errors() []string {
	return r.errors
}
