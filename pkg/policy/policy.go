package policy

import (
	"fmt"
	"mime"
	"slices"
	"strings"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Match selects how a candidate's type is compared with the allowed set.
type Match string

const (
	// MatchExtension compares the lowercased filename with each allowed
	// entry as a substring, so "report.pdf.zip" satisfies "pdf".
	MatchExtension Match = "extension"

	// MatchMediaType compares the declared media type, without parameters,
	// with each allowed entry.
	MatchMediaType Match = "media-type"
)

// Policy is the set of intake constraints for one upload route. A Policy is
// a value and is never mutated once constructed.
type Policy struct {
	Name         string   `yaml:"name" json:"name"`
	Match        Match    `yaml:"match" json:"match"`
	Allowed      []string `yaml:"allowed" json:"allowed"`
	MaxFileSize  ByteSize `yaml:"maxFileSize" json:"maxFileSize"`
	MaxFileCount int      `yaml:"maxFileCount" json:"maxFileCount"`
	MaxBatchSize ByteSize `yaml:"maxBatchSize,omitempty" json:"maxBatchSize,omitempty"` // 0 disables the aggregate check
	TypeError    string   `yaml:"typeError,omitempty" json:"typeError,omitempty"`
}

// Candidate is the metadata of a file presented for validation.
type Candidate struct {
	Name      string
	MediaType string
	Size      int64
}

// Totals counts the files already accepted in the current session.
type Totals struct {
	Count int
	Bytes int64
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	KiB ByteSize = 1024
	MiB          = 1024 * KiB
	GiB          = 1024 * MiB
)

const (
	ImagePolicy    = "image"
	DocumentPolicy = "document"
	GenericPolicy  = "generic"
)

////////////////////////////////////////////////////////////////////////////////
// PRESETS

// Image accepts a single JPEG or PNG file up to 5 MiB.
func Image() Policy {
	return Policy{
		Name:         ImagePolicy,
		Match:        MatchExtension,
		Allowed:      []string{"jpeg", "jpg", "png"},
		MaxFileSize:  5 * MiB,
		MaxFileCount: 1,
		TypeError:    "Unsupported image format! Only JPG, JPEG, and PNG are allowed.",
	}
}

// Document accepts up to five PDF or Word files up to 10 MiB each.
func Document() Policy {
	return Policy{
		Name:         DocumentPolicy,
		Match:        MatchExtension,
		Allowed:      []string{"pdf", "doc", "docx"},
		MaxFileSize:  10 * MiB,
		MaxFileCount: 5,
		TypeError:    "Unsupported document format! Only PDF, DOC, and DOCX are allowed.",
	}
}

// Generic accepts up to 30 images, documents, spreadsheets, archives or
// media files up to 10 MiB each, matched on declared media type.
func Generic() Policy {
	return Policy{
		Name:  GenericPolicy,
		Match: MatchMediaType,
		Allowed: []string{
			"image/jpeg",
			"image/png",
			"image/gif",
			"image/webp",
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/rtf",
			"text/plain",
			"text/csv",
			"application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/zip",
			"audio/mpeg",
			"video/mp4",
		},
		MaxFileSize:  10 * MiB,
		MaxFileCount: 30,
		TypeError:    "File type not supported",
	}
}

// Presets returns the built-in policies keyed by name.
func Presets() map[string]Policy {
	return map[string]Policy{
		ImagePolicy:    Image(),
		DocumentPolicy: Document(),
		GenericPolicy:  Generic(),
	}
}

////////////////////////////////////////////////////////////////////////////////
// DERIVATION

// WithMaxFileSize returns a copy of the policy with a different per-file limit.
func (p Policy) WithMaxFileSize(n ByteSize) Policy {
	p.Allowed = slices.Clone(p.Allowed)
	p.MaxFileSize = n
	return p
}

// WithMaxFileCount returns a copy of the policy with a different count limit.
func (p Policy) WithMaxFileCount(n int) Policy {
	p.Allowed = slices.Clone(p.Allowed)
	p.MaxFileCount = n
	return p
}

// WithMaxBatchSize returns a copy of the policy with an aggregate size limit.
func (p Policy) WithMaxBatchSize(n ByteSize) Policy {
	p.Allowed = slices.Clone(p.Allowed)
	p.MaxBatchSize = n
	return p
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Check returns an error if the policy itself is unusable.
func (p Policy) Check() error {
	switch {
	case !types.IsIdentifier(p.Name):
		return fmt.Errorf("policy name %q is not a valid identifier", p.Name)
	case p.Match != MatchExtension && p.Match != MatchMediaType:
		return fmt.Errorf("policy %q: unknown match %q", p.Name, p.Match)
	case len(p.Allowed) == 0:
		return fmt.Errorf("policy %q: allowed set is empty", p.Name)
	case p.MaxFileSize <= 0:
		return fmt.Errorf("policy %q: maxFileSize must be positive", p.Name)
	case p.MaxFileCount <= 0:
		return fmt.Errorf("policy %q: maxFileCount must be positive", p.Name)
	case p.MaxBatchSize < 0:
		return fmt.Errorf("policy %q: maxBatchSize must not be negative", p.Name)
	}
	return nil
}

// Validate returns nil if the candidate is accepted, or an *Error. The type
// is checked before the size.
func (p Policy) Validate(c Candidate) error {
	if !p.allows(c) {
		return newError(ReasonType, c.Name, p.typeError())
	}
	if c.Size > int64(p.MaxFileSize) {
		return newError(ReasonSize, c.Name, fmt.Sprintf("File size exceeds %v limit", p.MaxFileSize))
	}
	return nil
}

// ValidateBatch applies the batch gates and then validates each candidate.
// A non-nil error means the whole incoming batch is rejected and no
// per-file check was run. Otherwise the returned slice holds one entry per
// candidate, nil for accepted files.
func (p Policy) ValidateBatch(existing Totals, incoming []Candidate) ([]error, error) {
	if existing.Count+len(incoming) > p.MaxFileCount {
		return nil, newError(ReasonCount, "", fmt.Sprintf("Maximum %d files allowed", p.MaxFileCount))
	}
	if p.MaxBatchSize > 0 {
		total := existing.Bytes
		for _, c := range incoming {
			total += c.Size
		}
		if total > int64(p.MaxBatchSize) {
			return nil, newError(ReasonBatchSize, "", fmt.Sprintf("Total size exceeds %v limit", p.MaxBatchSize))
		}
	}

	results := make([]error, len(incoming))
	for i, c := range incoming {
		results[i] = p.Validate(c)
	}
	return results, nil
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (p Policy) String() string {
	return types.Stringify(p)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (p Policy) allows(c Candidate) bool {
	switch p.Match {
	case MatchExtension:
		name := strings.ToLower(c.Name)
		for _, ext := range p.Allowed {
			if strings.Contains(name, strings.ToLower(ext)) {
				return true
			}
		}
	case MatchMediaType:
		mediaType, _, err := mime.ParseMediaType(c.MediaType)
		if err != nil {
			return false
		}
		for _, allowed := range p.Allowed {
			if strings.EqualFold(mediaType, allowed) {
				return true
			}
		}
	}
	return false
}

func (p Policy) typeError() string {
	if p.TypeError != "" {
		return p.TypeError
	}
	return "File type not supported"
}
