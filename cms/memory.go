package cms

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryClient is an in-memory CMS used by tests and local development. It
// supports the small query subset the post service actually issues.
type MemoryClient struct {
	mu     sync.RWMutex
	docs   map[string]Document
	assets map[string]AssetMeta
}

// NewMemoryClient returns an empty in-memory CMS.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		docs:   map[string]Document{},
		assets: map[string]AssetMeta{},
	}
}

// Fetch matches documents against the filters encoded in the query. Only
// equality on _type plus one string field is understood, which covers every
// query this platform issues.
func (c *MemoryClient) Fetch(_ context.Context, query string, params map[string]any) ([]Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docType := extractDocType(query)

	var out []Document
	for _, doc := range c.docs {
		if docType != "" && doc.Type() != docType {
			continue
		}
		if !matchesParams(doc, query, params) {
			continue
		}
		out = append(out, cloneDoc(doc))
	}
	return out, nil
}

func (c *MemoryClient) Create(_ context.Context, doc Document) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	created := cloneDoc(doc)
	if created.ID() == "" {
		created["_id"] = uuid.NewString()
	}
	c.docs[created.ID()] = created
	return cloneDoc(created), nil
}

func (c *MemoryClient) Patch(id string) *Patch {
	return newPatch(id, func(_ context.Context, id string, fields map[string]any) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		doc, ok := c.docs[id]
		if !ok {
			return ErrDocumentNotFound
		}
		for k, v := range fields {
			doc[k] = v
		}
		return nil
	})
}

func (c *MemoryClient) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(c.docs, id)
	return nil
}

func (c *MemoryClient) UploadAsset(_ context.Context, kind string, _ []byte, meta AssetMeta) (AssetRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := "image-" + uuid.NewString()
	if kind != "image" {
		id = kind + "-" + uuid.NewString()
	}
	c.assets[id] = meta
	return AssetRef{ID: id}, nil
}

// Get returns a stored document by ID. Test helper.
func (c *MemoryClient) Get(id string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return cloneDoc(doc), true
}

func extractDocType(query string) string {
	const marker = `_type == "`
	idx := strings.Index(query, marker)
	if idx < 0 {
		return ""
	}
	rest := query[idx+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func matchesParams(doc Document, query string, params map[string]any) bool {
	for name, value := range params {
		if !strings.Contains(query, "$"+name) {
			continue
		}
		field := paramField(query, name)
		if field == "" {
			continue
		}
		if fieldValue(doc, field) != value {
			return false
		}
	}
	return true
}

// fieldValue resolves a possibly dotted field path, descending into nested
// maps (`slug.current` reads doc["slug"]["current"]).
func fieldValue(doc Document, path string) any {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// paramField finds the field compared against $name, e.g. `email == $email`.
func paramField(query, name string) string {
	idx := strings.Index(query, "$"+name)
	if idx < 0 {
		return ""
	}
	left := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query[:idx]), "=="))
	parts := strings.FieldsFunc(left, func(r rune) bool {
		return r == ' ' || r == '[' || r == '&' || r == '('
	})
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func cloneDoc(doc Document) Document {
	out := Document{}
	for k, v := range doc {
		out[k] = v
	}
	return out
}
