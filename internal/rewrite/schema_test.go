package rewrite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The wire format is shared with the web service; these schemas pin it down
// so a drift in either direction fails loudly.

func compileSchema(t *testing.T, path string) *jsonschema.Schema {
	t.Helper()
	sch, err := jsonschema.Compile(path)
	if err != nil {
		t.Fatalf("compile %s: %v", path, err)
	}
	return sch
}

func validateJSON(t *testing.T, sch *jsonschema.Schema, data []byte) error {
	t.Helper()
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("fixture is not JSON: %v", err)
	}
	return sch.Validate(v)
}

func TestRequestBodyMatchesSchema(t *testing.T) {
	sch := compileSchema(t, "testdata/rewrite_request.schema.json")

	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{"text": "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	outcome := client.Rewrite(context.Background(), "make this better", "professional",
		Credentials{UserID: "u-1", Token: "tok"})
	if outcome.Kind != KindSuccess {
		t.Fatalf("rewrite outcome = %v", outcome.Kind)
	}

	if err := validateJSON(t, sch, body); err != nil {
		t.Errorf("request body violates schema: %v\nbody: %s", err, body)
	}
}

func TestResponseFixturesMatchSchema(t *testing.T) {
	successSchema := compileSchema(t, "testdata/rewrite_success.schema.json")
	errorSchema := compileSchema(t, "testdata/rewrite_error.schema.json")

	successFixtures := map[string]string{
		"minimal": `{"text": "Hello."}`,
		"full": `{
			"text": "Hello, world.",
			"metadata": {
				"processingTimeMs": 412,
				"timestamp": "2026-08-28T10:00:00Z",
				"requestId": "req-123",
				"usage": {"remainingToday": 41, "dailyLimit": 50, "percentUsed": 18.0},
				"plan": {"name": "pro", "features": ["tones", "priority"]}
			}
		}`,
	}
	for name, fixture := range successFixtures {
		if err := validateJSON(t, successSchema, []byte(fixture)); err != nil {
			t.Errorf("%s: success fixture violates schema: %v", name, err)
		}
	}

	errorFixtures := map[string]string{
		"auth":       `{"error": "invalid desktop token", "code": "DESKTOP_AUTH_INVALID"}`,
		"quota":      `{"error": "daily limit reached", "code": "USAGE_LIMIT_EXCEEDED", "details": {"plan": "free"}}`,
		"rate":       `{"error": "slow down", "code": "RATE_LIMIT_EXCEEDED", "details": {"retryAfter": 30}}`,
		"validation": `{"error": "invalid request", "code": "VALIDATION_ERROR", "details": [{"field": "text", "message": "text too long"}]}`,
	}
	for name, fixture := range errorFixtures {
		if err := validateJSON(t, errorSchema, []byte(fixture)); err != nil {
			t.Errorf("%s: error fixture violates schema: %v", name, err)
		}
	}

	// An unrecognized code must not slip through the schema; the client maps
	// it to an unknown outcome, and the contract should flag it server-side.
	bad := `{"error": "boom", "code": "SOMETHING_NEW"}`
	if err := validateJSON(t, errorSchema, []byte(bad)); err == nil {
		t.Error("unrecognized error code should violate the schema")
	}
}
