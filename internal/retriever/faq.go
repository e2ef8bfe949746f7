package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrFAQFetch = errors.New("faq fetch failed")

const sectionMarker = "\n##"

// FetchFAQ downloads the policy document.
func FetchFAQ(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFAQFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFAQFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %s", ErrFAQFetch, url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFAQFetch, err)
	}
	return string(body), nil
}

// SplitFAQ cuts the document before every "\n##" so each section heading
// starts its own chunk. Blank chunks are dropped.
func SplitFAQ(text string) []string {
	var chunks []string
	for {
		i := strings.Index(text[min(1, len(text)):], sectionMarker)
		if i < 0 {
			break
		}
		cut := i + min(1, len(text))
		chunks = appendChunk(chunks, text[:cut])
		text = text[cut:]
	}
	return appendChunk(chunks, text)
}

func appendChunk(chunks []string, s string) []string {
	if strings.TrimSpace(s) == "" {
		return chunks
	}
	return append(chunks, s)
}
