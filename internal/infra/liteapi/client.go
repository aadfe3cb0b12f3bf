// Package liteapi is the outbound HTTP client for the LITE licensing
// system. Requests are HAWK-signed with payload verification.
package liteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hiyosi/hawk"

	"chiefgate/internal/chief"
	"chiefgate/internal/config"
)

const usagePath = "/licences/hmrc-integration/"

// Delivery is LITE's verdict on one usage payload. Status 207 carries
// per-licence accept/reject lists; 208 means the payload was already
// processed and counts as fully accepted.
type Delivery struct {
	Status   int
	Body     string
	Accepted []string
	Rejected []string
}

type Client struct {
	baseURL string
	hawkID  string
	hawkKey string
	http    *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.LiteAPIURL, "/"),
		hawkID:  cfg.LiteHawkID,
		hawkKey: cfg.LiteHawkKey,
		http:    &http.Client{Timeout: cfg.LiteTimeout()},
	}
}

type usageEnvelope struct {
	UsageDataID string               `json:"usage_data_id"`
	Licences    []chief.LicenceUsage `json:"licences"`
}

type verdict struct {
	ID string `json:"id"`
}

type usageResponse struct {
	UsageDataID string `json:"usage_data_id"`
	Licences    struct {
		Accepted []verdict `json:"accepted"`
		Rejected []verdict `json:"rejected"`
	} `json:"licences"`
}

// SendUsage PUTs a usage payload to LITE. Any status other than 207 or 208
// is an error and the caller retries on a later tick.
func (c *Client) SendUsage(ctx context.Context, usageDataID string, payload *chief.LiteUsagePayload) (*Delivery, error) {
	body, err := json.Marshal(usageEnvelope{
		UsageDataID: usageDataID,
		Licences:    payload.Licences,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal usage payload: %w", err)
	}

	url := c.baseURL + usagePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	signer := hawk.NewClient(
		&hawk.Credential{ID: c.hawkID, Key: c.hawkKey, Alg: hawk.SHA256},
		&hawk.Option{ContentType: "application/json", Payload: string(body)},
	)
	auth, err := signer.Header(http.MethodPut, url)
	if err != nil {
		return nil, fmt.Errorf("hawk sign: %w", err)
	}
	req.Header.Set("Authorization", auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("put usage: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read usage response: %w", err)
	}

	delivery := &Delivery{Status: resp.StatusCode, Body: string(raw)}
	switch resp.StatusCode {
	case http.StatusMultiStatus:
		var parsed usageResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("parse usage response: %w", err)
		}
		for _, v := range parsed.Licences.Accepted {
			delivery.Accepted = append(delivery.Accepted, v.ID)
		}
		for _, v := range parsed.Licences.Rejected {
			delivery.Rejected = append(delivery.Rejected, v.ID)
		}
		return delivery, nil
	case http.StatusAlreadyReported:
		return delivery, nil
	default:
		return nil, fmt.Errorf("lite answered %d: %s", resp.StatusCode, raw)
	}
}
