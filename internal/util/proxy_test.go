package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "http://secure:3129", "")

	httpsReq, _ := http.NewRequest(http.MethodGet, "https://registry.example.gov/deed", nil)
	u, err := proxy(httpsReq)
	if err != nil || u.Host != "secure:3129" {
		t.Errorf("https request proxy = %v, %v", u, err)
	}

	httpReq, _ := http.NewRequest(http.MethodGet, "http://archive.example.org/", nil)
	u, err = proxy(httpReq)
	if err != nil || u.Host != "plain:3128" {
		t.Errorf("http request proxy = %v, %v", u, err)
	}
}

func TestNewProxyFunc_FallsBackToEnvironment(t *testing.T) {
	proxy := NewProxyFunc("", "", "")
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	if _, err := proxy(req); err != nil {
		t.Errorf("environment proxy lookup failed: %v", err)
	}
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "", "registry.example.gov")

	req, _ := http.NewRequest(http.MethodGet, "https://registry.example.gov/deed", nil)
	u, err := proxy(req)
	if err != nil || u != nil {
		t.Errorf("no_proxy host should bypass, got %v, %v", u, err)
	}

	other, _ := http.NewRequest(http.MethodGet, "https://archive.example.org/", nil)
	u, err = proxy(other)
	if err != nil || u == nil || u.Host != "plain:3128" {
		t.Errorf("https without https proxy should use http proxy, got %v, %v", u, err)
	}
}
