package publisher

import "net/http"

const defaultUserAgent = "autoposter"

type XHeaders struct {
	BearerToken string
	UserAgent   string
}

func (h *XHeaders) GetBasicHeaders() map[string]string {
	ua := h.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return map[string]string{
		"Accept":        "application/json",
		"Authorization": "Bearer " + h.BearerToken,
		"User-Agent":    ua,
	}
}

// GetFullHeaders adds the headers needed for requests that carry a JSON body.
func (h *XHeaders) GetFullHeaders() map[string]string {
	headers := h.GetBasicHeaders()
	headers["Content-Type"] = "application/json"
	return headers
}

func (h *XHeaders) AddHeadersToRequest(req *http.Request, fullHeaders bool) {
	var headers map[string]string
	if fullHeaders {
		headers = h.GetFullHeaders()
	} else {
		headers = h.GetBasicHeaders()
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
}
