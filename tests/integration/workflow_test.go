//go:build integration

package integration_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

type messageOut struct {
	RequestID string `json:"request_id"`
	State     string `json:"state"`
	Reply     string `json:"reply"`
	CaseID    string `json:"case_id"`

	Resolution *struct {
		Kind         string  `json:"kind"`
		Answer       string  `json:"answer"`
		RefundAmount float64 `json:"refund_amount"`
	} `json:"resolution"`
}

func postJSON(t *testing.T, path string, in any, out any) int {
	t.Helper()
	body, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(testServer.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func submitMessage(t *testing.T, customerID, message string, image []byte) messageOut {
	t.Helper()
	in := map[string]string{"customer_id": customerID, "message": message}
	if image != nil {
		in["image_base64"] = base64.StdEncoding.EncodeToString(image)
	}
	var out messageOut
	if code := postJSON(t, "/api/v1/messages", in, &out); code != http.StatusOK {
		t.Fatalf("POST /messages: expected 200, got %d", code)
	}
	return out
}

// TestRefundAutoApproveEndToEnd runs one refund claim with a damage photo
// through the real store and stub collaborators: the request must resolve,
// the wallet must be credited with the order value, and the audit trail must
// start at START and end at RESOLVED.
func TestRefundAutoApproveEndToEnd(t *testing.T) {
	before := testWallet.total()

	out := submitMessage(t, "intg-c1",
		"I want a refund for ORD100, it arrived broken", []byte("damage-photo"))

	if out.State != "RESOLVED" {
		t.Fatalf("expected RESOLVED, got %s (reply: %q)", out.State, out.Reply)
	}
	if out.Resolution == nil || out.Resolution.Kind != "refund_approved" {
		t.Fatalf("expected refund_approved resolution, got %+v", out.Resolution)
	}
	if got := testWallet.total() - before; got != 89.50 {
		t.Errorf("expected 89.50 credited, got %.2f", got)
	}

	var audit struct {
		Entries []struct {
			Seq       int    `json:"seq"`
			FromState string `json:"from_state"`
			ToState   string `json:"to_state"`
		} `json:"entries"`
	}
	if code := getJSON(t, "/api/v1/requests/"+out.RequestID+"/audit", &audit); code != http.StatusOK {
		t.Fatalf("GET audit: expected 200, got %d", code)
	}
	if len(audit.Entries) == 0 {
		t.Fatal("expected a non-empty audit trail")
	}
	for i, e := range audit.Entries {
		if e.Seq != i+1 {
			t.Errorf("entry %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
	}
	if audit.Entries[0].FromState != "START" {
		t.Errorf("expected first entry from START, got %s", audit.Entries[0].FromState)
	}
	if last := audit.Entries[len(audit.Entries)-1]; last.ToState != "RESOLVED" {
		t.Errorf("expected last entry to RESOLVED, got %s", last.ToState)
	}
}

// TestRefundSuspendsAndResumesOnImage submits a refund claim without a photo,
// expects AWAITING_IMAGE, then resubmits with the photo and expects the same
// request to resolve.
func TestRefundSuspendsAndResumesOnImage(t *testing.T) {
	first := submitMessage(t, "intg-c1", "please refund ORD100", nil)
	if first.State != "AWAITING_IMAGE" {
		t.Fatalf("expected AWAITING_IMAGE, got %s", first.State)
	}

	second := submitMessage(t, "intg-c1", "here is the photo for ORD100", []byte("damage-photo"))
	if second.RequestID != first.RequestID {
		t.Errorf("expected the suspended request to resume, got a new request %s (suspended %s)",
			second.RequestID, first.RequestID)
	}
	if second.State != "RESOLVED" {
		t.Fatalf("expected RESOLVED after image, got %s", second.State)
	}
}

// TestEscalationClaimResolveEndToEnd drives an unclassifiable message into a
// case, then walks the case through claim and resolve over the API.
func TestEscalationClaimResolveEndToEnd(t *testing.T) {
	out := submitMessage(t, "intg-c1", "xyzzy plugh ORD200", nil)
	if out.State != "ESCALATED" || out.CaseID == "" {
		t.Fatalf("expected ESCALATED with a case id, got state=%s case=%q", out.State, out.CaseID)
	}

	var queue struct {
		Cases []struct {
			ID string `json:"case_id"`
		} `json:"cases"`
	}
	if code := getJSON(t, "/api/v1/cases", &queue); code != http.StatusOK {
		t.Fatalf("GET /cases: expected 200, got %d", code)
	}
	found := false
	for _, c := range queue.Cases {
		if c.ID == out.CaseID {
			found = true
		}
	}
	if !found {
		t.Fatalf("case %s not in the pending queue", out.CaseID)
	}

	claim := map[string]string{"agent_id": "agent-intg"}
	if code := postJSON(t, "/api/v1/cases/"+out.CaseID+"/claim", claim, nil); code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d", code)
	}

	rival := map[string]string{"agent_id": "agent-rival"}
	if code := postJSON(t, "/api/v1/cases/"+out.CaseID+"/claim", rival, nil); code != http.StatusConflict {
		t.Fatalf("second claim: expected 409, got %d", code)
	}

	resolve := map[string]string{
		"agent_id": "agent-intg",
		"outcome":  "refund_denied",
		"note":     "message did not describe a supported request",
	}
	if code := postJSON(t, "/api/v1/cases/"+out.CaseID+"/resolve", resolve, nil); code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", code)
	}

	var c struct {
		Status string `json:"status"`
	}
	if code := getJSON(t, "/api/v1/cases/"+out.CaseID, &c); code != http.StatusOK {
		t.Fatalf("GET case: expected 200, got %d", code)
	}
	if c.Status != "resolved" {
		t.Errorf("expected status resolved, got %s", c.Status)
	}
}

// TestUnknownOrderEscalates checks that a dead order reference becomes an
// order_not_found case without touching the other collaborators.
func TestUnknownOrderEscalates(t *testing.T) {
	out := submitMessage(t, "intg-c1", "refund ORD999 please", nil)
	if out.State != "ESCALATED" || out.CaseID == "" {
		t.Fatalf("expected ESCALATED with a case id, got state=%s case=%q", out.State, out.CaseID)
	}

	var c struct {
		Reason string `json:"reason"`
	}
	if code := getJSON(t, "/api/v1/cases/"+out.CaseID, &c); code != http.StatusOK {
		t.Fatalf("GET case: expected 200, got %d", code)
	}
	if c.Reason != "order_not_found" {
		t.Errorf("expected reason order_not_found, got %s", c.Reason)
	}
}

// TestStatusQueryResolvesDirectly exercises the STATUS_QUERY path against the
// stub order store.
func TestStatusQueryResolvesDirectly(t *testing.T) {
	out := submitMessage(t, "intg-c1", "where is ORD200?", nil)
	if out.State != "RESOLVED" {
		t.Fatalf("expected RESOLVED, got %s", out.State)
	}
	if out.Resolution == nil || out.Resolution.Kind != "direct_answer" {
		t.Fatalf("expected direct_answer resolution, got %+v", out.Resolution)
	}
	want := fmt.Sprintf("Order %s is %s.", "ORD200", "shipped")
	if out.Reply != want {
		t.Errorf("expected reply %q, got %q", want, out.Reply)
	}
}
