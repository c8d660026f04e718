// Package brief generates mission briefs from a topic, using the reference
// search index for context and an OpenAI-compatible chat-completions endpoint
// for the text itself.
package brief

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/search"
)

// Brief is the generated mission announcement: a short title (which becomes
// the thread name and sheet tab) and a longer body.
type Brief struct {
	Title string
	Body  string
}

type Service struct {
	apiURL   string
	apiKey   string
	model    string
	client   *http.Client
	searcher *search.Service // may be nil
	log      *logrus.Logger
}

func New(apiURL, apiKey, model string, searcher *search.Service, log *logrus.Logger) *Service {
	return &Service{
		apiURL:   strings.TrimRight(apiURL, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
		searcher: searcher,
		log:      log,
	}
}

// Configured reports whether brief generation can run.
func (s *Service) Configured() bool {
	return s != nil && s.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate produces a brief for the topic. Reference lookup failures degrade
// to a context-free prompt rather than failing the command.
func (s *Service) Generate(ctx context.Context, topic string) (Brief, error) {
	if !s.Configured() {
		return Brief{}, fmt.Errorf("brief generation not configured")
	}

	var refs []search.Reference
	if s.searcher != nil && s.searcher.Healthy() {
		found, err := s.searcher.SearchReferences(topic, 3)
		if err != nil {
			s.log.WithError(err).Warn("brief: reference lookup failed")
		} else {
			refs = found
		}
	}

	content, err := s.complete(ctx, buildPrompt(topic, refs))
	if err != nil {
		return Brief{}, err
	}
	return parseBrief(content, topic), nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You write short, energetic mission briefs for a community content contest. Respond with a one-line title on the first line, then the brief body."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completion endpoint: %w", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion endpoint: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion endpoint returned status %d with no choices", resp.StatusCode)
	}
	return parsed.Choices[0].Message.Content, nil
}

func buildPrompt(topic string, refs []search.Reference) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a mission brief for the topic: %s\n", topic)
	if len(refs) > 0 {
		b.WriteString("\nReference material:\n")
		for _, r := range refs {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, excerpt(r.Body, 200))
		}
	}
	return b.String()
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// parseBrief splits the completion into title and body. Models decorate the
// title line inconsistently, so markdown headers and quotes are stripped.
func parseBrief(content, fallbackTitle string) Brief {
	lines := strings.SplitN(strings.TrimSpace(content), "\n", 2)
	title := strings.TrimSpace(lines[0])
	title = strings.TrimLeft(title, "# ")
	title = strings.Trim(title, `"“”`)
	if title == "" {
		title = fallbackTitle
	}
	body := ""
	if len(lines) > 1 {
		body = strings.TrimSpace(lines[1])
	}
	return Brief{Title: title, Body: body}
}
