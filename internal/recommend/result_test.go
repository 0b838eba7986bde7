package recommend

import (
	"encoding/json"
	"testing"
)

func TestResultJSONShapes(t *testing.T) {
	body, err := json.Marshal(MessageResult(MessageNotEnoughData))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"message":"not enough data to recommend movies"}` {
		t.Fatalf("message shape = %s", body)
	}

	body, err = json.Marshal(Result{})
	if err != nil || string(body) != "[]" {
		t.Fatalf("empty list shape = %s err=%v", body, err)
	}
}

func TestResultDecodesPayloadsFromOtherWriters(t *testing.T) {
	raw := `[{"id":201,"title":"Mad Max","director":"George Miller","year":2015,"genre":"Action","synopsis":null,
		"createdAt":"2024-03-01T10:00:00.000Z","updatedAt":"2024-03-01T10:00:00.000Z"}]`
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if r.IsMessage() || len(r.Movies) != 1 || r.Movies[0].ID != 201 || r.Movies[0].Synopsis != nil {
		t.Fatalf("unexpected result: %+v", r)
	}

	if err := json.Unmarshal([]byte(` {"message":"no new recommendations found"}`), &r); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if !r.IsMessage() || r.Message != MessageNoCandidates || r.Movies != nil {
		t.Fatalf("unexpected result: %+v", r)
	}

	if err := json.Unmarshal([]byte(`"nope"`), &r); err == nil {
		t.Fatalf("expected error for scalar payload")
	}

	for _, payload := range []string{`null`, `{}`, `{"foo":1}`, `[]`, `{"message":""}`, `42`} {
		if err := json.Unmarshal([]byte(payload), &r); err == nil {
			t.Fatalf("expected error for %s, got %+v", payload, r)
		}
	}
}
