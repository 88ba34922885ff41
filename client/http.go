package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrNoEndpoint = errors.New("no http endpoint available")

type RecordDocument struct {
	Domain     string `json:"domain"`
	RecordType string `json:"record_type"`
	Value      string `json:"value,omitempty"`
	FromCache  bool   `json:"from_cache"`
}

type StatusDocument struct {
	Role    string           `json:"role"`
	Metrics map[string]int64 `json:"metrics"`
}

// HttpServiceClient talks to the JSON record API. Endpoints are tried in
// order and the next one is used only when the previous is unreachable.
type HttpServiceClient struct {
	endpoints []string
	client    *resty.Client
}

func NewHttpServiceClient(endpoints ...string) *HttpServiceClient {
	return &HttpServiceClient{
		endpoints: endpoints,
		client:    resty.New().SetTimeout(10 * time.Second),
	}
}

func (h *HttpServiceClient) Put(ctx context.Context, domain, recordType, value string) error {
	resp, err := h.do(ctx, func(r *resty.Request, endpoint string) (*resty.Response, error) {
		return r.SetBody(value).Put(endpoint + recordPath)
	}, domain, recordType)
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	default:
		return errors.New(fmt.Sprint("put record failed, status:", resp.StatusCode()))
	}
}

func (h *HttpServiceClient) Get(ctx context.Context, domain, recordType string) (RecordDocument, bool, error) {
	doc := RecordDocument{}
	resp, err := h.do(ctx, func(r *resty.Request, endpoint string) (*resty.Response, error) {
		return r.SetResult(&doc).Get(endpoint + recordPath)
	}, domain, recordType)
	if err != nil {
		return doc, false, err
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return doc, false, nil
	case http.StatusOK:
		return doc, true, nil
	default:
		return doc, false, errors.New(fmt.Sprint("get record failed, status:", resp.StatusCode()))
	}
}

func (h *HttpServiceClient) Delete(ctx context.Context, domain, recordType string) error {
	resp, err := h.do(ctx, func(r *resty.Request, endpoint string) (*resty.Response, error) {
		return r.Delete(endpoint + recordPath)
	}, domain, recordType)
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusNoContent, http.StatusOK:
		return nil
	default:
		return errors.New(fmt.Sprint("delete record failed, status:", resp.StatusCode()))
	}
}

func (h *HttpServiceClient) Status(ctx context.Context) (StatusDocument, error) {
	doc := StatusDocument{}
	resp, err := h.do(ctx, func(r *resty.Request, endpoint string) (*resty.Response, error) {
		return r.SetResult(&doc).Get(endpoint + "/status")
	}, "", "")
	if err != nil {
		return doc, err
	}
	if resp.StatusCode() != http.StatusOK {
		return doc, errors.New(fmt.Sprint("get status failed, status:", resp.StatusCode()))
	}
	return doc, nil
}

const recordPath = "/records/{domain}/{type}"

// do returns the first response any endpoint produced, in endpoint order.
func (h *HttpServiceClient) do(ctx context.Context, send func(r *resty.Request, endpoint string) (*resty.Response, error), domain, recordType string) (*resty.Response, error) {
	if len(h.endpoints) == 0 {
		return nil, ErrNoEndpoint
	}
	var errs []error
	for _, endpoint := range h.endpoints {
		r := h.client.R().SetContext(ctx)
		if domain != "" || recordType != "" {
			r.SetPathParams(map[string]string{
				"domain": strings.TrimSpace(domain),
				"type":   strings.TrimSpace(recordType),
			})
		}
		resp, err := send(r, strings.TrimRight(endpoint, "/"))
		if err == nil {
			return resp, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(append([]error{ErrNoEndpoint}, errs...)...)
}

// Send runs a text protocol query over the JSON API and renders the reply
// the way the text endpoint does.
func (h *HttpServiceClient) Send(ctx context.Context, query string) string {
	kind, err := ValidateQuery(query)
	if err != nil {
		return err.Error()
	}
	query = strings.TrimSpace(query)
	switch kind {
	case QueryAdd, QueryUpdate:
		parts := strings.SplitN(query, ":", 4)
		if err := h.Put(ctx, parts[1], parts[2], parts[3]); err != nil {
			return "[ERROR] " + err.Error()
		}
		return fmt.Sprintf("Record added: %s record for %s -> %s", parts[2], parts[1], parts[3])
	case QueryDelete:
		parts := strings.Split(query, ":")
		if err := h.Delete(ctx, parts[1], parts[2]); err != nil {
			return "[ERROR] " + err.Error()
		}
		return fmt.Sprintf("Record deleted: %s record for %s", parts[2], parts[1])
	case QueryQuery:
		parts := strings.Split(query, ":")
		doc, found, err := h.Get(ctx, parts[0], parts[1])
		switch {
		case err != nil:
			return "[ERROR] " + err.Error()
		case !found:
			return "Record not found."
		case doc.FromCache:
			return fmt.Sprintf("DNS Response (from cache): %s record for %s -> %s", doc.RecordType, doc.Domain, doc.Value)
		default:
			return fmt.Sprintf("DNS Response: %s record for %s -> %s", doc.RecordType, doc.Domain, doc.Value)
		}
	default:
		return ""
	}
}
