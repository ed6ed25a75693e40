// Package novaposhta — клиент API документов перевозчика (формат Новой Почты):
// один JSON-эндпоинт, конверт {apiKey, modelName, calledMethod, methodProperties}.
package novaposhta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"waybox/internal/integrations/carrier"

	"github.com/pkg/errors"
)

const (
	modelInternetDocument = "InternetDocument"
	modelTrackingDocument = "TrackingDocument"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.novaposhta.ua"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type request struct {
	APIKey           string `json:"apiKey"`
	ModelName        string `json:"modelName"`
	CalledMethod     string `json:"calledMethod"`
	MethodProperties any    `json:"methodProperties"`
}

type documentResponse struct {
	Success bool                   `json:"success"`
	Data    []carrier.DocumentData `json:"data"`
	Errors  []string               `json:"errors"`
}

func (c *Client) SaveDocument(ctx context.Context, p carrier.DocumentParams) (carrier.Result, error) {
	return c.documentCall(ctx, "save", p)
}

func (c *Client) UpdateDocument(ctx context.Context, p carrier.DocumentParams) (carrier.Result, error) {
	return c.documentCall(ctx, "update", p)
}

func (c *Client) DeleteDocument(ctx context.Context, ref string) (carrier.Result, error) {
	props := map[string]any{"DocumentRefs": []string{ref}}
	var resp documentResponse
	if err := c.call(ctx, modelInternetDocument, "delete", props, &resp); err != nil {
		return carrier.Result{}, err
	}
	return carrier.Result{Success: resp.Success, Errors: resp.Errors}, nil
}

func (c *Client) documentCall(ctx context.Context, method string, p carrier.DocumentParams) (carrier.Result, error) {
	var resp documentResponse
	if err := c.call(ctx, modelInternetDocument, method, p, &resp); err != nil {
		return carrier.Result{}, err
	}
	return carrier.Result{Success: resp.Success, Data: resp.Data, Errors: resp.Errors}, nil
}

type trackingResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Number             string `json:"Number"`
		StatusCode         string `json:"StatusCode"`
		TrackingUpdateDate string `json:"TrackingUpdateDate"`
	} `json:"data"`
	Errors []string `json:"errors"`
}

func (c *Client) GetStatusDocuments(ctx context.Context, documentNumbers []string) ([]carrier.TrackingState, error) {
	docs := make([]map[string]string, 0, len(documentNumbers))
	for _, n := range documentNumbers {
		docs = append(docs, map[string]string{"DocumentNumber": n})
	}

	var resp trackingResponse
	if err := c.call(ctx, modelTrackingDocument, "getStatusDocuments", map[string]any{"Documents": docs}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("carrier tracking failed: %v", resp.Errors)
	}

	out := make([]carrier.TrackingState, 0, len(resp.Data))
	for _, d := range resp.Data {
		code, err := strconv.Atoi(d.StatusCode)
		if err != nil {
			return nil, errors.Wrapf(err, "parse status code %q for %s", d.StatusCode, d.Number)
		}
		st := carrier.TrackingState{DocumentNumber: d.Number, TrackingCode: code}
		// Пример формата: "2024-01-10 18:30:00"
		if d.TrackingUpdateDate != "" {
			if t, err := time.ParseInLocation("2006-01-02 15:04:05", d.TrackingUpdateDate, time.UTC); err == nil {
				u := t.UTC()
				st.TrackingAt = &u
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, model, method string, props any, out any) error {
	body, err := json.Marshal(request{
		APIKey:           c.apiKey,
		ModelName:        model,
		CalledMethod:     method,
		MethodProperties: props,
	})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2.0/json/", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("carrier api http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
