package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
)

type envelope struct {
	Detail string          `json:"detail"`
	Error  any             `json:"error"`
	Result json.RawMessage `json:"result"`
}

// APIError 服务端返回的非 2xx 响应。
type APIError struct {
	Status int
	Detail string
	Reason string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Detail, e.Reason)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Detail)
}

type apiClient struct {
	rc *resty.Client
}

func newAPIClient(opts *globalOptions) *apiClient {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.server, "/")).
		SetTimeout(opts.timeout)
	if opts.token != "" {
		rc.SetAuthToken(opts.token)
	}
	return &apiClient{rc: rc}
}

// postJSON 以 JSON 提交 body。
func (c *apiClient) postJSON(ctx context.Context, path string, body any) (*envelope, error) {
	return c.send(c.rc.R().SetContext(ctx).SetBody(body), path)
}

// postFile 以 multipart 字段 field 上传文件内容。
func (c *apiClient) postFile(ctx context.Context, path, field, filename string, r io.Reader) (*envelope, error) {
	return c.send(c.rc.R().SetContext(ctx).SetFileReader(field, filename, r), path)
}

func (c *apiClient) send(req *resty.Request, path string) (*envelope, error) {
	var env envelope
	resp, err := req.
		ForceContentType("application/json").
		SetResult(&env).
		SetError(&env).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Detail: env.Detail}
		if s, ok := env.Error.(string); ok {
			apiErr.Reason = s
		}
		return nil, apiErr
	}
	return &env, nil
}
