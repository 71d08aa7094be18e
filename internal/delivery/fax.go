package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"recordsdesk/internal/models"
)

// FaxSender posts documents to an HTTP fax provider. In dry-run mode (or
// without an API key) nothing leaves the process.
type FaxSender struct {
	APIURL string
	APIKey string
	Sender string
	DryRun bool
	HTTP   *http.Client
}

type faxResponse struct {
	Code int `json:"code"`
	Data struct {
		FaxID string `json:"faxId"`
	} `json:"data"`
	Message string `json:"message"`
}

func NewFaxSender(apiURL, apiKey, sender string, dryRun bool) *FaxSender {
	return &FaxSender{
		APIURL: apiURL,
		APIKey: apiKey,
		Sender: sender,
		DryRun: dryRun,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *FaxSender) Send(ctx context.Context, out Outbound) (Receipt, error) {
	to := normalizeFax(out.Address)
	if c.DryRun || c.APIKey == "" || c.APIKey == "dry-run" {
		log.Printf("[delivery][fax][dry-run] comm=%d to=%s sender=%q", out.CommunicationID, to, c.Sender)
		return Receipt{ID: "dry-run-" + uuid.NewString(), Status: models.DeliveryGood}, nil
	}

	form := url.Values{
		"apiKey":    {c.APIKey},
		"recipient": {to},
		"subject":   {out.Subject},
		"text":      {out.Body},
		"reference": {strconv.FormatInt(out.CommunicationID, 10)},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("send fax request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("fax provider http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var result faxResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Receipt{}, fmt.Errorf("parse fax response: %w", err)
	}
	if result.Code != 0 {
		return Receipt{}, fmt.Errorf("fax provider returned error code %d: %s", result.Code, result.Message)
	}
	return Receipt{ID: result.Data.FaxID, Status: models.DeliveryPending}, nil
}

// normalizeFax keeps digits and a leading plus.
func normalizeFax(s string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
