// Package instruction parses and validates the instruction document
// (deploy.json) that a fetched repository ships at its workspace root.
package instruction

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/pathspec"
)

var (
	// ErrInvalidConfig is returned for a malformed instruction document.
	ErrInvalidConfig = errors.Base("invalid instruction document")

	// ErrInvalidAction is returned for an action row that is neither a
	// comment string nor a well-formed object with a supported type.
	ErrInvalidAction = errors.Base("invalid action")
)

// TypeSentinel is the required value of the document's "type" field.
const TypeSentinel = "delphi deploy config"

// Supported document version range.
const (
	VersionMin = 1
	VersionMax = 1
)

// Kind enumerates the closed set of action types.
type Kind string

const (
	KindCopy          Kind = "copy"
	KindMove          Kind = "move"
	KindCompileCoffee Kind = "compile-coffee"
	KindMinimizeJS    Kind = "minimize-js"
	KindExport        Kind = "export"
	KindImport        Kind = "import"
)

// Document is a parsed instruction document. Action rows stay raw until
// they are reached: a malformed or unsupported row fails the deployment at
// its position in the sequence, not up front.
type Document struct {
	Type    string                 `json:"type"`
	Version int                    `json:"version"`
	Skip    bool                   `json:"skip"`
	Paths   pathspec.Substitutions `json:"paths"`
	Actions []json.RawMessage      `json:"actions"`
}

// TemplateList accepts either a single template name or a list of them.
type TemplateList []string

func (l *TemplateList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = TemplateList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Errorf("replace-keywords must be a string or list of strings: %w", err)
	}
	*l = TemplateList(many)
	return nil
}

// Action is one resolved, well-formed action row.
type Action struct {
	Kind             Kind         `json:"type"`
	Src              string       `json:"src"`
	Dst              string       `json:"dst"`
	Match            string       `json:"match"`
	Name             string       `json:"name"`
	AddHeaderComment bool         `json:"add-header-comment"`
	ReplaceKeywords  TemplateList `json:"replace-keywords"`
}

// Load reads and validates the instruction document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading instruction document: %w", err)
	}
	return Parse(data)
}

// Parse validates the document's envelope: the root must be an object, the
// type must equal the sentinel, the version must be supported and actions
// must be an array. Rows are left unvalidated on purpose.
func Parse(data []byte) (*Document, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.Errorf("unable to load instruction document: %w: %w", err, ErrInvalidConfig)
	}

	var doc Document
	if raw, ok := root["type"]; ok {
		_ = json.Unmarshal(raw, &doc.Type)
	}
	if doc.Type != TypeSentinel {
		return nil, errors.Errorf("missing or invalid field `type`: %w", ErrInvalidConfig)
	}

	if raw, ok := root["version"]; ok {
		_ = json.Unmarshal(raw, &doc.Version)
	}
	if doc.Version < VersionMin || doc.Version > VersionMax {
		return nil, errors.Errorf("missing or invalid field `version`: %w", ErrInvalidConfig)
	}

	if raw, ok := root["skip"]; ok {
		_ = json.Unmarshal(raw, &doc.Skip)
	}
	if raw, ok := root["paths"]; ok {
		if err := json.Unmarshal(raw, &doc.Paths); err != nil {
			return nil, errors.Errorf("missing or invalid field `paths`: %w", ErrInvalidConfig)
		}
	}

	raw, ok := root["actions"]
	if !ok {
		return nil, errors.Errorf("missing or invalid field `actions`: %w", ErrInvalidConfig)
	}
	if err := json.Unmarshal(raw, &doc.Actions); err != nil {
		return nil, errors.Errorf("missing or invalid field `actions`: %w", ErrInvalidConfig)
	}

	return &doc, nil
}

// Row resolves the i-th action row. ok=false with a nil error means the row
// is a comment string and should be skipped. Errors identify the row by its
// 1-based position among the total count.
func (d *Document) Row(i int) (Action, bool, error) {
	raw := d.Actions[i]
	position := fmt.Sprintf("(%d/%d)", i+1, len(d.Actions))

	var comment string
	if err := json.Unmarshal(raw, &comment); err == nil {
		return Action{}, false, nil
	}

	var probe struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Type == nil {
		return Action{}, false, errors.Errorf("action %s is neither a comment nor an object with a `type`: %w", position, ErrInvalidAction)
	}
	var kind string
	if err := json.Unmarshal(probe.Type, &kind); err != nil {
		return Action{}, false, errors.Errorf("action %s has a non-string `type`: %w", position, ErrInvalidAction)
	}

	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, false, errors.Errorf("action %s is malformed: %w: %w", position, err, ErrInvalidAction)
	}
	a.Kind = Kind(strings.ToLower(kind))

	switch a.Kind {
	case KindCopy, KindMove, KindCompileCoffee, KindMinimizeJS, KindExport, KindImport:
		return a, true, nil
	default:
		return Action{}, false, errors.Errorf("unsupported action %s: %q: %w", position, kind, ErrInvalidAction)
	}
}
