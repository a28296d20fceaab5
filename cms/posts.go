package cms

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Post statuses as stored in the content store.
const (
	StatusDraft     = "DRAFT"
	StatusPending   = "PENDING"
	StatusPublished = "PUBLISHED"
)

// PostInput is the author-supplied content for a create or update.
type PostInput struct {
	Title      string
	Content    string
	Summary    string
	Status     string
	Tags       []string
	CoverImage []byte
	CoverName  string
	CoverType  string
}

// Author identifies the signed-in author a post belongs to.
type Author struct {
	Name  string
	Email string
}

// PostService is thin glue over the CMS client for post documents. Every
// caller has already passed the route guard; this service never looks at
// roles.
type PostService struct {
	client Client
}

// NewPostService wraps a CMS client.
func NewPostService(client Client) *PostService {
	return &PostService{client: client}
}

var slugStrip = regexp.MustCompile(`[^\w\s-]`)
var slugSpaces = regexp.MustCompile(`\s+`)
var slugDashes = regexp.MustCompile(`-+`)

// Slugify derives a URL slug from a title.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	return slugDashes.ReplaceAllString(s, "-")
}

func normalizeStatus(status string) string {
	switch status {
	case StatusDraft, StatusPending, StatusPublished:
		return status
	}
	return StatusDraft
}

// ensureAuthor returns the author document ID for email, creating the
// document on first use.
func (s *PostService) ensureAuthor(ctx context.Context, author Author) (string, error) {
	docs, err := s.client.Fetch(ctx, `*[_type == "author" && email == $email]`, map[string]any{
		"email": author.Email,
	})
	if err != nil {
		return "", err
	}
	if len(docs) > 0 {
		return docs[0].ID(), nil
	}

	name := author.Name
	if name == "" {
		name = strings.SplitN(author.Email, "@", 2)[0]
	}

	created, err := s.client.Create(ctx, Document{
		"_type": "author",
		"name":  name,
		"email": author.Email,
		"slug":  map[string]any{"current": Slugify(name)},
	})
	if err != nil {
		return "", err
	}
	return created.ID(), nil
}

// CreatePost stores a new post document, uploading the cover image first
// when one is supplied.
func (s *PostService) CreatePost(ctx context.Context, author Author, input PostInput) (string, error) {
	if input.Title == "" || input.Content == "" {
		return "", fmt.Errorf("title and content are required")
	}

	authorID, err := s.ensureAuthor(ctx, author)
	if err != nil {
		return "", err
	}

	doc := Document{
		"_type":        "post",
		"title":        input.Title,
		"slug":         map[string]any{"current": Slugify(input.Title)},
		"publishedAt":  time.Now().UTC().Format(time.RFC3339),
		"status":       normalizeStatus(input.Status),
		"content_type": "blog",
		"summary":      input.Summary,
		"tags":         input.Tags,
		"bodyHtml":     input.Content,
		"authors": []any{
			map[string]any{"_type": "reference", "_ref": authorID},
		},
	}

	if len(input.CoverImage) > 0 {
		asset, err := s.client.UploadAsset(ctx, "image", input.CoverImage, AssetMeta{
			Filename:    input.CoverName,
			ContentType: input.CoverType,
		})
		if err != nil {
			return "", err
		}
		doc["coverImage"] = map[string]any{
			"_type": "image",
			"asset": map[string]any{"_type": "reference", "_ref": asset.ID},
		}
	}

	created, err := s.client.Create(ctx, doc)
	if err != nil {
		return "", err
	}
	return created.ID(), nil
}

// UpdatePost patches the mutable fields of an existing post.
func (s *PostService) UpdatePost(ctx context.Context, id string, input PostInput) error {
	if id == "" {
		return ErrDocumentNotFound
	}

	fields := map[string]any{}
	if input.Title != "" {
		fields["title"] = input.Title
		fields["slug"] = map[string]any{"current": Slugify(input.Title)}
	}
	if input.Content != "" {
		fields["bodyHtml"] = input.Content
	}
	if input.Summary != "" {
		fields["summary"] = input.Summary
	}
	if input.Status != "" {
		fields["status"] = normalizeStatus(input.Status)
	}
	if input.Tags != nil {
		fields["tags"] = input.Tags
	}

	return s.client.Patch(id).Set(fields).Commit(ctx)
}

// DeletePost removes a post document.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	return s.client.Delete(ctx, id)
}

// GetBySlug returns the post with the given slug, or ErrDocumentNotFound.
func (s *PostService) GetBySlug(ctx context.Context, slug string) (Document, error) {
	docs, err := s.client.Fetch(ctx, `*[_type == "post" && slug.current == $slug]`, map[string]any{
		"slug": slug,
	})
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if inner, ok := doc["slug"].(map[string]any); ok && inner["current"] == slug {
			return doc, nil
		}
	}
	return nil, ErrDocumentNotFound
}

// ListByAuthor returns posts referencing the author document for email.
func (s *PostService) ListByAuthor(ctx context.Context, email string) ([]Document, error) {
	authors, err := s.client.Fetch(ctx, `*[_type == "author" && email == $email]`, map[string]any{
		"email": email,
	})
	if err != nil {
		return nil, err
	}
	if len(authors) == 0 {
		return []Document{}, nil
	}
	authorID := authors[0].ID()

	posts, err := s.client.Fetch(ctx, `*[_type == "post"]`, nil)
	if err != nil {
		return nil, err
	}

	out := []Document{}
	for _, post := range posts {
		if postReferencesAuthor(post, authorID) {
			out = append(out, post)
		}
	}
	return out, nil
}

func postReferencesAuthor(post Document, authorID string) bool {
	refs, ok := post["authors"].([]any)
	if !ok {
		return false
	}
	for _, raw := range refs {
		if ref, ok := raw.(map[string]any); ok && ref["_ref"] == authorID {
			return true
		}
	}
	return false
}
