package cms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPConfig configures the HTTP CMS client.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Dataset string
	Timeout time.Duration
}

// httpClient talks to a Sanity-style content API: a query endpoint taking a
// query string plus params, and a mutations endpoint taking create / patch /
// delete operations.
type httpClient struct {
	rest    *resty.Client
	dataset string
}

// NewHTTPClient builds a CMS client over the content HTTP API.
func NewHTTPClient(cfg HTTPConfig) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("cms base URL required")
	}
	if cfg.Dataset == "" {
		cfg.Dataset = "production"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		rest.SetAuthToken(cfg.Token)
	}

	return &httpClient{rest: rest, dataset: cfg.Dataset}, nil
}

type queryResponse struct {
	Result []Document `json:"result"`
}

type mutateRequest struct {
	Mutations []map[string]any `json:"mutations"`
}

type mutateResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

func (c *httpClient) Fetch(ctx context.Context, query string, params map[string]any) ([]Document, error) {
	req := c.rest.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		SetResult(&queryResponse{})
	for k, v := range params {
		req.SetQueryParam("$"+k, fmt.Sprintf("%q", v))
	}

	resp, err := req.Get("/v1/data/query/" + c.dataset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCMSUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: query returned %s", ErrCMSUnavailable, resp.Status())
	}

	return resp.Result().(*queryResponse).Result, nil
}

func (c *httpClient) mutate(ctx context.Context, mutations []map[string]any) (*mutateResponse, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(mutateRequest{Mutations: mutations}).
		SetResult(&mutateResponse{}).
		Post("/v1/data/mutate/" + c.dataset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCMSUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrDocumentNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: mutate returned %s", ErrCMSUnavailable, resp.Status())
	}
	return resp.Result().(*mutateResponse), nil
}

func (c *httpClient) Create(ctx context.Context, doc Document) (Document, error) {
	result, err := c.mutate(ctx, []map[string]any{{"create": doc}})
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("%w: create returned no result", ErrCMSUnavailable)
	}

	created := Document{}
	for k, v := range doc {
		created[k] = v
	}
	created["_id"] = result.Results[0].ID
	return created, nil
}

func (c *httpClient) Patch(id string) *Patch {
	return newPatch(id, func(ctx context.Context, id string, fields map[string]any) error {
		_, err := c.mutate(ctx, []map[string]any{{
			"patch": map[string]any{"id": id, "set": fields},
		}})
		return err
	})
}

func (c *httpClient) Delete(ctx context.Context, id string) error {
	_, err := c.mutate(ctx, []map[string]any{{
		"delete": map[string]any{"id": id},
	}})
	return err
}

func (c *httpClient) UploadAsset(ctx context.Context, kind string, data []byte, meta AssetMeta) (AssetRef, error) {
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ref := AssetRef{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetQueryParam("filename", meta.Filename).
		SetBody(data).
		SetResult(&struct {
			Document *AssetRef `json:"document"`
		}{Document: &ref}).
		Post("/v1/assets/" + kind + "s/" + c.dataset)
	if err != nil {
		return AssetRef{}, fmt.Errorf("%w: %v", ErrCMSUnavailable, err)
	}
	if resp.IsError() {
		return AssetRef{}, fmt.Errorf("%w: upload returned %s", ErrCMSUnavailable, resp.Status())
	}
	return ref, nil
}
