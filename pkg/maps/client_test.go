package maps

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestClientComputeRoute(t *testing.T) {
	const expectedURL = "http://maps.test/directions/v2:computeRoutes"
	respBody := `{"routes":[{"distanceMeters":1874,"duration":"421s","polyline":{"encodedPolyline":"abc123"}}]}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["travelMode"] != "TWO_WHEELER" {
			t.Fatalf("unexpected travel mode %v", payload["travelMode"])
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	httpClient := &http.Client{Transport: rt}
	client, err := NewClient("test-key", WithBaseURL("http://maps.test"), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	estimate, err := client.ComputeRoute(context.Background(),
		LatLng{Latitude: 50.7192, Longitude: -1.8808},
		LatLng{Latitude: 50.7200, Longitude: -1.8750},
	)
	if err != nil {
		t.Fatalf("compute route: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("X-Goog-Api-Key") != "test-key" {
		t.Fatalf("api key header missing")
	}
	if capturedHeaders.Get("X-Goog-FieldMask") != computeRoutesFieldMask {
		t.Fatalf("field mask header missing")
	}
	if estimate.DistanceMeters != 1874 {
		t.Fatalf("unexpected distance %d", estimate.DistanceMeters)
	}
	if estimate.Duration != 421*time.Second {
		t.Fatalf("unexpected duration %v", estimate.Duration)
	}
	if estimate.EncodedPolyline != "abc123" {
		t.Fatalf("unexpected polyline %q", estimate.EncodedPolyline)
	}
}

func TestClientComputeRouteNoRoutes(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"routes":[]}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("test-key", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.ComputeRoute(context.Background(), LatLng{}, LatLng{}); err == nil {
		t.Fatal("expected no-route error")
	}
}

func TestClientComputeRouteUpstreamError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Body:       io.NopCloser(strings.NewReader(`{"error":"denied"}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("test-key", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.ComputeRoute(context.Background(), LatLng{}, LatLng{}); err == nil {
		t.Fatal("expected upstream error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected api key error")
	}
}

func TestParseDurationSeconds(t *testing.T) {
	d, err := parseDurationSeconds("421s")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d != 421*time.Second {
		t.Fatalf("unexpected duration %v", d)
	}

	if _, err := parseDurationSeconds("nonsense"); err == nil {
		t.Fatal("expected parse error")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
