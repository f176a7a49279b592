// Package translate provides a pluggable article translation client.
// Nothing in the ingestion pipeline depends on it; it exists for
// optional post-processing of stored articles.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderDummy  = "dummy"
	ProviderGoogle = "google"
	ProviderDeepL  = "deepl"
)

// ErrUnavailable is returned when a provider is not configured.
var ErrUnavailable = errors.New("translation provider unavailable")

// Translator translates text between languages. fromLang "auto" asks
// the provider to detect the source language.
type Translator interface {
	Translate(ctx context.Context, text, fromLang, toLang string) (string, error)
	Available() bool
}

// New returns the Translator for the configured provider name.
func New(provider, apiKey string) (Translator, error) {
	switch provider {
	case ProviderDummy, "":
		return &dummyTranslator{}, nil
	case ProviderGoogle:
		return &googleTranslator{}, nil
	case ProviderDeepL:
		return newDeepLTranslator(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown translation provider: %s", provider)
	}
}

// dummyTranslator tags text with the target language, for testing.
type dummyTranslator struct{}

func (t *dummyTranslator) Translate(_ context.Context, text, _, toLang string) (string, error) {
	return fmt.Sprintf("[%s] %s", toLang, text), nil
}

func (t *dummyTranslator) Available() bool {
	return true
}

// googleTranslator is a placeholder; Google translation has no
// supported client here yet.
type googleTranslator struct{}

func (t *googleTranslator) Translate(context.Context, string, string, string) (string, error) {
	return "", ErrUnavailable
}

func (t *googleTranslator) Available() bool {
	return false
}

// deepLTranslator talks to the DeepL v2 REST API. Free-tier keys end
// in ":fx" and use a different host than pro keys.
type deepLTranslator struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

func newDeepLTranslator(apiKey string) *deepLTranslator {
	endpoint := "https://api.deepl.com/v2/translate"
	if strings.HasSuffix(apiKey, ":fx") {
		endpoint = "https://api-free.deepl.com/v2/translate"
	}
	return &deepLTranslator{
		apiKey:   apiKey,
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *deepLTranslator) Available() bool {
	return t.apiKey != ""
}

func (t *deepLTranslator) Translate(ctx context.Context, text, fromLang, toLang string) (string, error) {
	if !t.Available() {
		return "", ErrUnavailable
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(toLang))
	if fromLang != "" && fromLang != "auto" {
		form.Set("source_lang", strings.ToUpper(fromLang))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+t.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepl request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepl returned status %d", resp.StatusCode)
	}

	var out struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("deepl response decode failed: %w", err)
	}
	if len(out.Translations) == 0 {
		return "", errors.New("deepl returned no translations")
	}
	return out.Translations[0].Text, nil
}
