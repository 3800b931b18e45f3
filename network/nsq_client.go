package network

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// NSQClient publishes messages to nsqd over its HTTP interface.
type NSQClient struct {
	URL        string
	httpClient *http.Client
}

// Formally define this so we can generate mocks for testing.
type NSQClientInterface interface {
	EnqueueString(topic string, data string) error
}

// NewNSQClient returns a new NSQ client that will connect to the NSQ
// server at the specified url. The URL is typically available through
// Config.NsqURL, and usually ends with :4151. This is the URL to which
// we post verification requests and integrity alerts.
//
// Note that this client provides write access to queue, so we can
// add things. It does not provide read access. The workers do the
// reading.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{
		URL:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnqueueString posts string data to the specified NSQ topic.
func (client *NSQClient) EnqueueString(topic string, data string) error {
	if client.URL == "" {
		return fmt.Errorf("No nsqd URL configured; cannot queue to %s", topic)
	}
	pubURL := fmt.Sprintf("%s/pub?topic=%s", client.URL, url.QueryEscape(topic))
	resp, err := client.httpClient.Post(pubURL, "text/plain", bytes.NewBufferString(data))
	if err != nil {
		return fmt.Errorf("Nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("No response from nsqd at '%s'. Is it running?", pubURL)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyText := "[no response body]"
		if len(body) > 0 {
			bodyText = string(body)
		}
		return NewHttpError(
			fmt.Sprintf("nsqd returned status code %d when attempting to queue data. "+
				"Response body: %s", resp.StatusCode, bodyText),
			nil, http.MethodPost, pubURL, resp.StatusCode)
	}
	return nil
}
