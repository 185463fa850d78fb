package llm

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "time"
)

const maxAttempts = 3

// retryBase is the first backoff delay; it doubles per attempt.
var retryBase = 500 * time.Millisecond

// StatusError is a non-2xx reply from a provider.
type StatusError struct {
    Provider string
    Code     int
    Body     string
}

func (e *StatusError) Error() string {
    return fmt.Sprintf("%s status %d: %s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) Retryable() bool {
    return e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests || (e.Code >= 500 && e.Code <= 599)
}

// postJSON sends body and decodes a 2xx reply into out. Timeouts, 408, 429
// and 5xx are retried with exponential backoff.
func postJSON(ctx context.Context, hc *http.Client, provider, url string, headers map[string]string, body, out any) error {
    b, err := json.Marshal(body)
    if err != nil { return fmt.Errorf("%s: encode request: %w", provider, err) }
    if hc == nil { hc = &http.Client{Timeout: clientTimeout()} }

    var lastErr error
    for attempt := 0; attempt < maxAttempts; attempt++ {
        if attempt > 0 {
            if err := sleep(ctx, backoff(attempt-1)); err != nil { return errors.Join(lastErr, err) }
        }
        req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
        if err != nil { return fmt.Errorf("%s: %w", provider, err) }
        req.Header.Set("Content-Type", "application/json")
        for k, v := range headers {
            if v != "" { req.Header.Set(k, v) }
        }
        res, err := hc.Do(req)
        if err != nil {
            lastErr = fmt.Errorf("%s request: %w", provider, err)
            if isTimeout(err) && ctx.Err() == nil { continue }
            return lastErr
        }
        lastErr = decodeReply(res, provider, out)
        var se *StatusError
        if lastErr == nil || !errors.As(lastErr, &se) || !se.Retryable() { return lastErr }
    }
    return lastErr
}

func decodeReply(res *http.Response, provider string, out any) error {
    defer res.Body.Close()
    if res.StatusCode < 200 || res.StatusCode >= 300 {
        raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
        return &StatusError{Provider: provider, Code: res.StatusCode, Body: string(bytes.TrimSpace(raw))}
    }
    if err := json.NewDecoder(res.Body).Decode(out); err != nil {
        return fmt.Errorf("%s: decode response: %w", provider, err)
    }
    return nil
}

func clientTimeout() time.Duration {
    if v := os.Getenv("LLM_HTTP_TIMEOUT_MS"); v != "" {
        if ms, err := time.ParseDuration(v+"ms"); err == nil { return ms }
    }
    return 45 * time.Second
}

func isTimeout(err error) bool {
    type timeout interface{ Timeout() bool }
    var te timeout
    if errors.As(err, &te) { return te.Timeout() }
    return false
}

func backoff(i int) time.Duration {
    return retryBase * time.Duration(1<<i)
}

func sleep(ctx context.Context, d time.Duration) error {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}
