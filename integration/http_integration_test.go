package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// baseURL returns the address of a running instance, or "" when the HTTP
// suite should be skipped.
func baseURL() string {
	return os.Getenv("VIGIL_BASE_URL")
}

// doRequest performs an HTTP request against the live instance.
func doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL()+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

// envelope mirrors the API response envelope.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseResponse(resp *http.Response) envelope {
	defer resp.Body.Close()
	var env envelope
	Expect(json.NewDecoder(resp.Body).Decode(&env)).To(Succeed())
	return env
}

var _ = Describe("HTTP API", Ordered, func() {
	var alertID string

	BeforeAll(func() {
		if baseURL() == "" {
			Skip("VIGIL_BASE_URL not set, skipping HTTP suite")
		}
	})

	It("answers the health check", func() {
		resp, err := doRequest("GET", "/healthz", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		parseResponse(resp)
	})

	It("creates an alert on first receive", func() {
		resp, err := doRequest("POST", "/v1/alerts", map[string]interface{}{
			"environment": "development",
			"resource":    "it-web01",
			"event":       "HttpError",
			"severity":    "major",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		env := parseResponse(resp)
		Expect(env.Success).To(BeTrue())

		var data struct {
			Alert struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"alert"`
			Outcome string `json:"outcome"`
		}
		Expect(json.Unmarshal(env.Data, &data)).To(Succeed())
		Expect(data.Outcome).To(Equal("created"))
		Expect(data.Alert.Status).To(Equal("open"))
		alertID = data.Alert.ID
	})

	It("reports a repeat as a duplicate", func() {
		resp, err := doRequest("POST", "/v1/alerts", map[string]interface{}{
			"environment": "development",
			"resource":    "it-web01",
			"event":       "HttpError",
			"severity":    "major",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		env := parseResponse(resp)
		var data struct {
			Outcome string `json:"outcome"`
		}
		Expect(json.Unmarshal(env.Data, &data)).To(Succeed())
		Expect(data.Outcome).To(Equal("duplicate"))
	})

	It("rejects a malformed alert", func() {
		resp, err := doRequest("POST", "/v1/alerts", map[string]interface{}{
			"environment": "development",
			"resource":    "it-web01",
			"severity":    "major",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("acknowledges the alert by short id", func() {
		resp, err := doRequest("PUT", "/v1/alerts/"+alertID[:8]+"/action", map[string]interface{}{
			"action": "ack",
			"text":   "looking into it",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("refuses a second ack", func() {
		resp, err := doRequest("PUT", "/v1/alerts/"+alertID+"/action", map[string]interface{}{
			"action": "ack",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
	})

	It("manages suppression windows", func() {
		resp, err := doRequest("POST", "/v1/suppressions", map[string]interface{}{
			"environment": "development",
			"resource":    "it-web01",
			"duration":    60,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		env := parseResponse(resp)
		var window struct {
			ID string `json:"id"`
		}
		Expect(json.Unmarshal(env.Data, &window)).To(Succeed())

		resp, err = doRequest("DELETE", "/v1/suppressions/"+window.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
	})

	AfterAll(func() {
		if alertID != "" {
			_, _ = doRequest("DELETE", "/v1/alerts/"+alertID, nil)
		}
	})
})
