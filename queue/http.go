package queue

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

// HTTPRenderer renders tiles by calling a tile generator endpoint, GET
// {BaseURL}?tile={url}&renderonly=1, and reports the response status.
type HTTPRenderer struct {
	BaseURL string
	Client  *http.Client
}

func (r *HTTPRenderer) Render(ctx context.Context, tileURL string) (int, error) {
	q := url.Values{}
	q.Set("tile", tileURL)
	q.Set("renderonly", "1")
	sep := "?"
	if strings.Contains(r.BaseURL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+sep+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// the status is the result, a broken body does not change it
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		log.WithField("component", "queue").Debugf("drain response of %s error ~ %s", tileURL, err)
	}
	return resp.StatusCode, nil
}
