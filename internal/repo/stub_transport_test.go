package repo

import "net/http"

type stubTransport struct {
	handle func(*http.Request) (*http.Response, error)
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return s.handle(req)
}

// stubHTTPClient builds a client whose requests never leave the process.
func stubHTTPClient(handle func(*http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: &stubTransport{handle: handle}}
}
