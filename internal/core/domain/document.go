package domain

import (
	"errors"
	"path"
	"strings"
)

// SourceScheme prefixes every canonical document locator.
const SourceScheme = "s3://"

// archiveMemberSeparator joins an archive locator with the member path inside it.
const archiveMemberSeparator = "_file_inside:"

type Format string

const (
	FormatPDF         Format = "pdf"
	FormatText        Format = "text"
	FormatSpreadsheet Format = "spreadsheet"
	FormatZip         Format = "zip"
	FormatUnknown     Format = "unknown"
)

// FormatFromKey selects the extraction strategy from a key or member path extension.
func FormatFromKey(key string) Format {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return FormatPDF
	case ".txt":
		return FormatText
	case ".xlsx":
		return FormatSpreadsheet
	case ".zip":
		return FormatZip
	default:
		return FormatUnknown
	}
}

// ObjectLocation addresses a stored object, as carried by an upload notification.
type ObjectLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (l ObjectLocation) Validate() error {
	if strings.TrimSpace(l.Bucket) == "" {
		return WrapError(ErrInvalidInput, "validate location", errors.New("bucket is required"))
	}
	if strings.TrimSpace(l.Key) == "" {
		return WrapError(ErrInvalidInput, "validate location", errors.New("key is required"))
	}
	return nil
}

func (l ObjectLocation) String() string {
	return SourceScheme + l.Bucket + "/" + l.Key
}

// Document is a single ingestible unit: a stored object, or one member of a stored archive.
type Document struct {
	Location  ObjectLocation `json:"location"`
	InnerPath string         `json:"inner_path,omitempty"`
	Format    Format         `json:"format"`
}

// NewDocument builds a top-level document whose format follows the object key.
func NewDocument(loc ObjectLocation) Document {
	return Document{Location: loc, Format: FormatFromKey(loc.Key)}
}

// NewArchiveMember builds a document for a member of the archive at loc.
func NewArchiveMember(loc ObjectLocation, innerPath string) Document {
	return Document{Location: loc, InnerPath: innerPath, Format: FormatFromKey(innerPath)}
}

// Source is the canonical locator stored in every record's metadata.
// Archive members keep the archive locator and append the member path.
func (d Document) Source() string {
	source := d.Location.String()
	if d.InnerPath != "" && FormatFromKey(d.Location.Key) == FormatZip {
		source += archiveMemberSeparator + d.InnerPath
	}
	return source
}

// IndexedRecord is the persisted unit of the vector index, one per chunk.
type IndexedRecord struct {
	Embedding []float32      `json:"embedding"`
	Text      string         `json:"text"`
	Metadata  RecordMetadata `json:"metadata"`
}

type RecordMetadata struct {
	Source string `json:"source"`
}

// IndexSchema describes the fixed layout every VectorIndex adapter creates.
type IndexSchema struct {
	VectorField   string
	TextField     string
	MetadataField string
	Dimension     int
	SpaceType     string
}

func DefaultIndexSchema(dimension int) IndexSchema {
	return IndexSchema{
		VectorField:   "vector_field",
		TextField:     "text_field",
		MetadataField: "metadata",
		Dimension:     dimension,
		SpaceType:     "cosinesimil",
	}
}
