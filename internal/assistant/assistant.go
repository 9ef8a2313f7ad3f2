// Package assistant is the passthrough to the external AI collaborator: one
// stateless request taking the aggregated board snapshot and a free-text
// question, answering with free text or a fixed fallback. No retries, no
// cancellation beyond the caller's context.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/camarena/rifamaster/internal/domain"
	"github.com/camarena/rifamaster/internal/observability"
)

// Fallback is returned on any failure or when no credential is configured.
const Fallback = "The assistant is not available right now."

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	logger     observability.Logger
}

func New(apiKey, model string, logger observability.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		logger:     logger,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Ask answers a question about the board. It never fails: every error path
// degrades to the fallback string.
func (c *Client) Ask(ctx context.Context, snap domain.Snapshot, question string) string {
	if c.apiKey == "" {
		return Fallback
	}

	body, err := json.Marshal(generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemPrompt(snap)}}},
		Contents:          []content{{Parts: []part{{Text: question}}}},
	})
	if err != nil {
		return Fallback
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Fallback
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("assistant request failed: ", err)
		return Fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Warn("assistant returned non-200")
		return Fallback
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Fallback
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return Fallback
	}
	answer := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if answer == "" {
		return Fallback
	}
	return answer
}

func systemPrompt(snap domain.Snapshot) string {
	buyers := make([]string, 0, len(snap.TopBuyers))
	for _, b := range snap.TopBuyers {
		buyers = append(buyers, fmt.Sprintf("%s (%d)", b.Name, b.Count))
	}
	top := strings.Join(buyers, ", ")
	if top == "" {
		top = "none"
	}

	var sb strings.Builder
	sb.WriteString("You are the assistant for a numbered raffle (tickets 00-99).\n")
	fmt.Fprintf(&sb, "Ticket price: $%d\n", snap.Price)
	fmt.Fprintf(&sb, "Available: %d\n", snap.AvailableCount)
	fmt.Fprintf(&sb, "Reserved: %d ($%d outstanding)\n", snap.ReservedCount, snap.TotalPending)
	fmt.Fprintf(&sb, "Paid: %d ($%d collected)\n", snap.PaidCount, snap.TotalRaised)
	fmt.Fprintf(&sb, "Top buyers: %s\n", top)
	sb.WriteString("\nAnswer briefly and professionally.")
	return sb.String()
}
