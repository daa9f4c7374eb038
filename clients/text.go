package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// --- Text (/text_to_sequence) ---
type TextReq struct {
	Text     string   `json:"text"`
	Cleaners []string `json:"cleaners,omitempty"`
}
type TextResp struct {
	Sequence []int `json:"sequence"`
}

func (h *HTTP) TextToSequence(ctx context.Context, url, text string, cleaners []string) (*TextResp, error) {
	payload, _ := json.Marshal(TextReq{Text: text, Cleaners: cleaners})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/text_to_sequence", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("text %s: %s", resp.Status, string(body))
	}

	var out TextResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("text decode: %w", err)
	}
	return &out, nil
}

// RemoteTokenizer tokenizes transcriptions through a text service.
type RemoteTokenizer struct {
	HTTP     *HTTP
	URL      string
	Cleaners []string
}

func (t *RemoteTokenizer) Tokenize(ctx context.Context, text string) ([]int, error) {
	out, err := t.HTTP.TextToSequence(ctx, t.URL, text, t.Cleaners)
	if err != nil {
		return nil, err
	}
	return out.Sequence, nil
}
