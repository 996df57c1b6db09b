package flags

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/vantor/bucketscope/internal/logger"
)

// remoteTimeout bounds one flag-service round trip. Flag checks sit on the
// scheduler startup path and must never hang it.
const remoteTimeout = 2 * time.Second

// Remote queries a flag service: GET {baseURL}/flags/{name} returning
// {"enabled": bool}. Any transport or decode failure means "no opinion",
// which lets a static fallback in the chain decide.
type Remote struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewRemote returns a Remote provider against baseURL.
func NewRemote(baseURL string, log *logger.Logger) *Remote {
	return &Remote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: remoteTimeout},
		log:     log.With().Str("component", "flags").Logger(),
	}
}

// Enabled implements Provider.
func (r *Remote) Enabled(ctx context.Context, name string) (bool, bool) {
	endpoint := r.baseURL + "/flags/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Debugf("flag service unreachable: %v", err)
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Debugf("flag service returned %d for %q", resp.StatusCode, name)
		return false, false
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		r.log.Debugf("flag service response malformed: %v", err)
		return false, false
	}
	return body.Enabled, true
}
