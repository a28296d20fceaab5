package cms

import (
	"context"
	"errors"
)

// ErrDocumentNotFound is returned when a query or mutation targets a
// document that does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// ErrCMSUnavailable wraps transport-level CMS failures.
var ErrCMSUnavailable = errors.New("cms unavailable")

// Document is a loosely-typed CMS document. The content store owns the
// schema; this side only reads and writes fields it knows by name.
type Document map[string]any

// ID returns the document identifier, or "".
func (d Document) ID() string {
	id, _ := d["_id"].(string)
	return id
}

// Type returns the document type, or "".
func (d Document) Type() string {
	t, _ := d["_type"].(string)
	return t
}

// String returns a string field, or "".
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// AssetRef identifies an uploaded binary asset.
type AssetRef struct {
	ID string `json:"_id"`
}

// Client is the headless-CMS boundary as consumed by this platform. The
// guard authorizes every caller before any of these methods run; nothing
// here re-checks roles.
type Client interface {
	Fetch(ctx context.Context, query string, params map[string]any) ([]Document, error)
	Create(ctx context.Context, doc Document) (Document, error)
	Patch(id string) *Patch
	Delete(ctx context.Context, id string) error
	UploadAsset(ctx context.Context, kind string, data []byte, meta AssetMeta) (AssetRef, error)
}

// AssetMeta describes an uploaded asset.
type AssetMeta struct {
	Filename    string
	ContentType string
}

// Patch is a staged partial update, committed in one round trip.
type Patch struct {
	id     string
	fields map[string]any
	commit func(ctx context.Context, id string, fields map[string]any) error
}

func newPatch(id string, commit func(ctx context.Context, id string, fields map[string]any) error) *Patch {
	return &Patch{
		id:     id,
		fields: map[string]any{},
		commit: commit,
	}
}

// Set stages field updates. Later calls overwrite earlier ones per field.
func (p *Patch) Set(fields map[string]any) *Patch {
	for k, v := range fields {
		p.fields[k] = v
	}
	return p
}

// Commit applies the staged updates.
func (p *Patch) Commit(ctx context.Context) error {
	return p.commit(ctx, p.id, p.fields)
}
