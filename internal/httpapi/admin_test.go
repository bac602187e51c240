package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/directory"
	"github.com/yakushift/staffing-platform/internal/dispatch"
	"github.com/yakushift/staffing-platform/internal/observability/metrics"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

type adminFixture struct {
	registry *staffing.MemoryRegistry
	dir      *directory.MemoryDirectory
	engine   *engineStub
	handler  http.Handler
}

func newAdminFixture(t *testing.T, token string, opts ...AdminOption) *adminFixture {
	t.Helper()
	registry := staffing.NewMemoryRegistry()
	dir := directory.NewMemoryDirectory()
	engine := &engineStub{}
	arbiter := staffing.NewArbiter(registry, dir, logging.Default())

	admin := NewAdminHandler(registry, arbiter, engine, dir, logging.Default(), opts...)
	handler := New(&Config{
		Admin:      admin,
		AdminToken: token,
	})
	return &adminFixture{registry: registry, dir: dir, engine: engine, handler: handler}
}

func (f *adminFixture) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set(adminTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func seedOpenRequest(t *testing.T, f *adminFixture) *staffing.Request {
	t.Helper()
	req, err := f.registry.Create(context.Background(), &staffing.Request{
		StoreRef:      "さくら薬局",
		StoreUserID:   "Ustore1",
		Date:          "2025-05-20",
		StartLabel:    "09:00",
		EndLabel:      "18:00",
		TimeSlot:      staffing.SlotFullDay,
		RequiredCount: 2,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return req
}

func TestAdminTokenGate(t *testing.T) {
	f := newAdminFixture(t, "s3cret")

	if rec := f.do(t, http.MethodGet, "/api/requests", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/requests", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/requests", "s3cret", ""); rec.Code != http.StatusOK {
		t.Fatalf("header token: status = %d, want 200", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/requests?admin_token=s3cret", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("query token: status = %d, want 200", rec.Code)
	}
}

func TestCreateRequestStoresAndDispatches(t *testing.T) {
	registry := staffing.NewMemoryRegistry()
	dir := directory.NewMemoryDirectory()
	for i := 1; i <= 3; i++ {
		dir.AddIdentity(directory.Identity{
			Kind:   directory.KindPharmacist,
			Name:   fmt.Sprintf("薬剤師%d", i),
			UserID: fmt.Sprintf("Upharm%d", i),
		})
	}
	transport := chat.NewMemoryTransport()
	dispatcher := dispatch.New(dir, registry, transport, logging.Default())
	arbiter := staffing.NewArbiter(registry, dir, logging.Default())

	admin := NewAdminHandler(registry, arbiter, &engineStub{}, dir, logging.Default(),
		WithAdminDispatcher(dispatcher))
	f := &adminFixture{registry: registry, dir: dir, handler: New(&Config{Admin: admin})}

	rec := f.do(t, http.MethodPost, "/api/requests", "", `{
		"store_ref": "さくら薬局",
		"store_user_id": "Ustore1",
		"date": "2025-05-20",
		"start_label": "14:00",
		"end_label": "18:00",
		"required_count": 9
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp createRequestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Request == nil || resp.Request.ID == "" {
		t.Fatalf("response = %+v, want stored request", resp)
	}
	if resp.Request.RequiredCount != staffing.MaxRequiredCount {
		t.Fatalf("RequiredCount = %d, want clamped to %d", resp.Request.RequiredCount, staffing.MaxRequiredCount)
	}
	if resp.Request.TimeSlot != staffing.SlotAfternoon {
		t.Fatalf("TimeSlot = %q, want derived afternoon", resp.Request.TimeSlot)
	}
	if resp.Dispatch == nil || resp.Dispatch.Notified != 3 {
		t.Fatalf("dispatch = %+v, want 3 notified", resp.Dispatch)
	}
	if got := len(transport.Deliveries()); got != 3 {
		t.Fatalf("deliveries = %d, want 3", got)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newAdminFixture(t, "")

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing store_ref", `{"date": "2025-05-20"}`},
		{"missing date", `{"store_ref": "さくら薬局"}`},
		{"bad date format", `{"store_ref": "さくら薬局", "date": "5/20"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/requests", "", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListRequestsFiltersByStatus(t *testing.T) {
	f := newAdminFixture(t, "")
	seedOpenRequest(t, f)

	rec := f.do(t, http.MethodGet, "/api/requests?status=pending", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Requests []*staffing.Request `json:"requests"`
		Count    int                 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Requests) != 1 {
		t.Fatalf("count = %d, requests = %d, want 1", resp.Count, len(resp.Requests))
	}

	rec = f.do(t, http.MethodGet, "/api/requests?status=completed", "", "")
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 0 {
		t.Fatalf("completed count = %d, want 0", resp.Count)
	}
}

func TestGetRequestIncludesNotificationHistory(t *testing.T) {
	history := dispatch.NewMemoryHistory()
	f := newAdminFixture(t, "", WithAdminHistory(history))
	req := seedOpenRequest(t, f)

	if err := history.RecordNotification(context.Background(), req.ID, "Upharm1", "sent"); err != nil {
		t.Fatalf("RecordNotification failed: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/requests/"+req.ID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var detail requestDetail
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if detail.Request == nil || detail.Request.ID != req.ID {
		t.Fatalf("detail = %+v", detail)
	}
	if detail.Notifications["Upharm1"] != "sent" {
		t.Fatalf("notifications = %v", detail.Notifications)
	}

	if rec := f.do(t, http.MethodGet, "/api/requests/no_such_request", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestInjectResponseReplaysThroughEngine(t *testing.T) {
	f := newAdminFixture(t, "")
	req := seedOpenRequest(t, f)

	rec := f.do(t, http.MethodPost, "/api/requests/"+req.ID+"/responses", "",
		`{"pharmacist_id": "Upharm1", "action": "apply"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got := f.engine.handled()
	if len(got) != 1 {
		t.Fatalf("events handled = %d, want 1", len(got))
	}
	want := chat.Token(chat.ActionPharmacistApply, req.ID)
	if got[0].Kind != chat.EventAction || got[0].UserID != "Upharm1" || got[0].ActionToken != want {
		t.Fatalf("event = %+v, want token %q", got[0], want)
	}

	rec = f.do(t, http.MethodPost, "/api/requests/"+req.ID+"/responses", "",
		`{"pharmacist_id": "Upharm1", "action": "maybe"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad action: status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/requests/no_such_request/responses", "",
		`{"pharmacist_id": "Upharm1", "action": "decline"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestCancelRequest(t *testing.T) {
	f := newAdminFixture(t, "")
	req := seedOpenRequest(t, f)

	rec := f.do(t, http.MethodDelete, "/api/requests/"+req.ID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	stored, err := f.registry.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != staffing.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", stored.Status)
	}

	if rec := f.do(t, http.MethodDelete, "/api/requests/"+req.ID, "", ""); rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: status = %d, want 409", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/requests/no_such_request", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestAvailablePharmacists(t *testing.T) {
	f := newAdminFixture(t, "")
	f.dir.AddIdentity(directory.Identity{Kind: directory.KindPharmacist, Name: "空き", UserID: "Upharm1"})
	busy := f.dir.AddIdentity(directory.Identity{Kind: directory.KindPharmacist, Name: "勤務中", UserID: "Upharm2"})
	day, err := time.Parse(staffing.DateLayout, "2025-05-20")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	f.dir.SetCell(busy.ID, day, "9:00〜18:00 他店舗")

	rec := f.do(t, http.MethodGet, "/api/available-pharmacists?date=2025-05-20", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Date        string               `json:"date"`
		TimeSlot    string               `json:"time_slot"`
		Pharmacists []directory.Identity `json:"pharmacists"`
		Count       int                  `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Pharmacists) != 1 || resp.Pharmacists[0].UserID != "Upharm1" {
		t.Fatalf("response = %+v, want only the free pharmacist", resp)
	}
	if resp.TimeSlot != string(staffing.SlotFullDay) {
		t.Fatalf("time_slot = %q, want full_day default", resp.TimeSlot)
	}

	if rec := f.do(t, http.MethodGet, "/api/available-pharmacists?date=5-20", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status = %d, want 400", rec.Code)
	}
}

func TestStatisticsReportsDispatchLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	dm := metrics.NewDispatchMetrics(reg)
	dm.ObserveJobLatency(2.0)
	dm.ObserveJobLatency(4.0)

	f := newAdminFixture(t, "", WithAdminLatencySnapshot(DispatchLatency(reg)))

	rec := f.do(t, http.MethodGet, "/api/statistics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statisticsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DispatchLatency == nil {
		t.Fatal("dispatch_latency missing")
	}
	if resp.DispatchLatency.Jobs != 2 || resp.DispatchLatency.AverageSeconds != 3.0 {
		t.Fatalf("latency = %+v, want 2 jobs averaging 3s", resp.DispatchLatency)
	}
}
