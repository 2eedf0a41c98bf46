// Package captcha talks to the Google reCAPTCHA v3 siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const GoogleVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

type Verifier struct {
	secret    string
	threshold float64

	// Endpoint and Client are overridable for tests.
	Endpoint string
	Client   *http.Client
}

func NewVerifier(secret string, threshold float64) *Verifier {
	return &Verifier{
		secret:    secret,
		threshold: threshold,
		Endpoint:  GoogleVerifyURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify submits the client challenge token and reports whether the
// registration may proceed: success AND score at or above the threshold
// (a missing score counts as 0). Transport or decode failures are
// returned as errors, never treated as accepted.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if token == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("call siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode siteverify response: %w", err)
	}

	if !body.Success {
		log.Warnf("captcha verification unsuccessful: %v", body.ErrorCodes)
		return false, nil
	}
	if body.Score < v.threshold {
		log.Warnf("captcha score %.2f below threshold %.2f", body.Score, v.threshold)
		return false, nil
	}

	return true, nil
}
