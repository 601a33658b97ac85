// Package sink forwards delivered events to external collaborators.
// Every implementation is best-effort: failures are logged and
// swallowed, and no call may gate client-visible delivery.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chat-relay/domain"
)

// HistorySink pushes delivered chat messages and stored-file metadata
// to an external history service over plain HTTP. When a word-count
// helper is configured, each chat record is enriched with the count it
// returns; the helper failing only loses the enrichment.
type HistorySink struct {
	client       *http.Client
	log          *slog.Logger
	historyURL   string
	wordCountURL string
}

func NewHistorySink(log *slog.Logger, historyURL, wordCountURL string, timeout time.Duration) *HistorySink {
	return &HistorySink{
		client:       &http.Client{Timeout: timeout},
		log:          log,
		historyURL:   historyURL,
		wordCountURL: wordCountURL,
	}
}

type historyMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Recipient string `json:"recipient,omitempty"`
	WordCount *int   `json:"wordCount,omitempty"`
	Timestamp string `json:"timestamp"`
}

type historyFile struct {
	Username   string `json:"username"`
	FileName   string `json:"fileName"`
	StoredName string `json:"storedName"`
	SizeBytes  int64  `json:"sizeBytes"`
	Timestamp  string `json:"timestamp"`
}

func (s *HistorySink) NotifyChatSaved(ctx context.Context, message domain.ChatMessage) {
	record := historyMessage{
		Username:  message.SenderName,
		Message:   message.Body,
		Recipient: message.RecipientID,
		Timestamp: message.SentAt.Format(time.RFC3339),
	}
	if count, ok := s.wordCount(ctx, message.Body); ok {
		record.WordCount = &count
	}
	s.post(ctx, s.historyURL+"/api/messages", record)
}

func (s *HistorySink) NotifyFileSaved(ctx context.Context, asset domain.FileAsset) {
	s.post(ctx, s.historyURL+"/api/files", historyFile{
		Username:   asset.OwnerName,
		FileName:   asset.OriginalName,
		StoredName: asset.StoredName,
		SizeBytes:  asset.SizeBytes,
		Timestamp:  asset.StoredAt.Format(time.RFC3339),
	})
}

// wordCount asks the external helper how many words the body contains.
// The helper answers a bare integer in the response body.
func (s *HistorySink) wordCount(ctx context.Context, body string) (int, bool) {
	if s.wordCountURL == "" {
		return 0, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.wordCountURL,
		strings.NewReader(body))
	if err != nil {
		return 0, false
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("Word-count helper unreachable", "error", err)
		return 0, false
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32))
	if err != nil || resp.StatusCode != http.StatusOK {
		s.log.Warn("Word-count helper failed", "status", resp.StatusCode, "error", err)
		return 0, false
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		s.log.Warn("Word-count helper returned garbage", "body", string(raw))
		return 0, false
	}
	return count, true
}

func (s *HistorySink) post(ctx context.Context, url string, record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		s.log.Error("History record not serializable", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		s.log.Error("History request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("History service unreachable", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		s.log.Warn("History service refused record",
			"url", url, "status", fmt.Sprintf("%d", resp.StatusCode))
	}
}
