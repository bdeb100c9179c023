package timeutils_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/informalsystems/mq-load-test/pkg/timeutils"
	"gopkg.in/yaml.v3"
)

func TestBasicParsing(t *testing.T) {
	testCases := []struct {
		jsonObj  string
		expected time.Duration
	}{
		{`{"value": "10s"}`, 10 * time.Second},
		{`{"value": "3h"}`, 3 * time.Hour},
		{`{"value": "100m"}`, 100 * time.Minute},
	}

	for i, tc := range testCases {
		actual := struct {
			Value timeutils.ParseableDuration `json:"value"`
		}{}
		if err := json.Unmarshal([]byte(tc.jsonObj), &actual); err != nil {
			t.Errorf("failed to unmarshal test case JSON for case %d: %v", i, err)
			continue
		}
		if tc.expected != actual.Value.Duration() {
			t.Errorf("expected duration %s but got %s", tc.expected.String(), actual.Value.Duration().String())
		}
	}
}

func TestYAMLParsing(t *testing.T) {
	actual := struct {
		TTL timeutils.ParseableDuration `yaml:"ttl"`
	}{}
	if err := yaml.Unmarshal([]byte("ttl: 90s\n"), &actual); err != nil {
		t.Fatalf("failed to unmarshal YAML: %v", err)
	}
	if actual.TTL.Duration() != 90*time.Second {
		t.Errorf("expected 90s but got %s", actual.TTL.Duration())
	}
}

func TestMarshalRoundTripsThroughJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		TTL timeutils.ParseableDuration `json:"ttl"`
	}{timeutils.ParseableDuration(100 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"ttl":"1h40m0s"}` {
		t.Errorf("unexpected JSON: %s", string(b))
	}
}

func TestFormatHMS(t *testing.T) {
	testCases := []struct {
		d        time.Duration
		expected string
	}{
		{0, "00:00:00"},
		{999 * time.Millisecond, "00:00:00"},
		{61 * time.Second, "00:01:01"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{26 * time.Hour, "26:00:00"},
		{-5 * time.Second, "00:00:00"},
	}
	for i, tc := range testCases {
		if actual := timeutils.FormatHMS(tc.d); actual != tc.expected {
			t.Errorf("test case %d: expected %s but got %s", i, tc.expected, actual)
		}
	}
}
