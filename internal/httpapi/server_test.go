package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"telemetry-service/internal/config"
	"telemetry-service/internal/store"
)

type fakeStore struct {
	devEUIs   []string
	summaries []store.DeviceSummary
	readings  store.ReadingPage
	messages  store.MessagePage

	lastQuery store.MessageQuery
}

func (f *fakeStore) DistinctDevEUIs(context.Context) ([]string, error) {
	return f.devEUIs, nil
}

func (f *fakeStore) LatestPerDevice(context.Context) ([]store.DeviceSummary, error) {
	return f.summaries, nil
}

func (f *fakeStore) FindMessages(_ context.Context, q store.MessageQuery) (store.MessagePage, error) {
	f.lastQuery = q
	return f.messages, nil
}

func (f *fakeStore) FindReadings(_ context.Context, q store.MessageQuery) (store.ReadingPage, error) {
	f.lastQuery = q
	return f.readings, nil
}

func serve(t *testing.T, fs *fakeStore, target string) *httptest.ResponseRecorder {
	t.Helper()
	s := New(fs)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rw := httptest.NewRecorder()
	s.Handler(config.CORSConfig{Origins: []string{"*"}, Methods: []string{"*"}, Headers: []string{"*"}}).ServeHTTP(rw, req)
	return rw
}

func TestHealth(t *testing.T) {
	rw := serve(t, &fakeStore{}, "/api/messages/health")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rw.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", resp)
	}
}

func TestListDevEUIs(t *testing.T) {
	rw := serve(t, &fakeStore{devEUIs: []string{"D1", "D2"}}, "/api/messages/dev_euis")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var ids []string
	if err := json.Unmarshal(rw.Body.Bytes(), &ids); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ids) != 2 || ids[0] != "D1" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestListDevicesRendersKST(t *testing.T) {
	published := time.Date(2025, 4, 28, 2, 44, 39, 0, time.UTC)
	fs := &fakeStore{summaries: []store.DeviceSummary{
		{DevEUI: "X1", Battery: 80, PublishedAt: &published},
	}}
	rw := serve(t, fs, "/api/messages/devices")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var out []deviceSummaryDTO
	if err := json.Unmarshal(rw.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 device, got %d", len(out))
	}
	// 02:44:39 UTC is 11:44:39 in the +9 display zone.
	if out[0].PublishedAtKST != "2025-04-28 11:44:39 KST" {
		t.Fatalf("unexpected KST rendering: %q", out[0].PublishedAtKST)
	}
	if !strings.HasSuffix(out[0].PublishedAtKST, " KST") {
		t.Fatalf("expected KST suffix: %q", out[0].PublishedAtKST)
	}
}

func TestDeviceDetailQueryConstruction(t *testing.T) {
	fs := &fakeStore{}
	rw := serve(t, fs, "/api/messages/dev_euis/X1?page=2&page_size=5&start_date=2025-04-28&end_date=2025-04-28")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rw.Code, rw.Body.String())
	}

	q := fs.lastQuery
	if q.DevEUI != "X1" || q.Page != 2 || q.PageSize != 5 {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.DateField != store.DateFieldValues || q.SortBy != store.DateFieldMessage || !q.SortDesc {
		t.Fatalf("unexpected sort/date paths: %+v", q)
	}
	// 2025-04-28 local midnight KST is 2025-04-27T15:00:00Z.
	wantStart := time.Date(2025, 4, 27, 15, 0, 0, 0, time.UTC)
	if q.StartDate == nil || !q.StartDate.Equal(wantStart) {
		t.Fatalf("unexpected start: %v", q.StartDate)
	}
	wantEnd := time.Date(2025, 4, 28, 14, 59, 59, 999999000, time.UTC)
	if q.EndDate == nil || !q.EndDate.Equal(wantEnd) {
		t.Fatalf("unexpected end: %v", q.EndDate)
	}
}

func TestDeviceDetailDefaults(t *testing.T) {
	fs := &fakeStore{}
	rw := serve(t, fs, "/api/messages/dev_euis/X1")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	q := fs.lastQuery
	if q.Page != 1 || q.PageSize != 10 {
		t.Fatalf("expected defaults page=1 size=10, got %+v", q)
	}
	if q.StartDate != nil || q.EndDate != nil {
		t.Fatalf("expected no date range, got %+v", q)
	}
}

func TestDeviceDetailBadDate(t *testing.T) {
	rw := serve(t, &fakeStore{}, "/api/messages/dev_euis/X1?start_date=not-a-date")
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestDeviceDetailPastTheEndPage(t *testing.T) {
	fs := &fakeStore{readings: store.ReadingPage{
		Items: nil, Total: 12, Page: 3, PageSize: 10, TotalPages: 2,
	}}
	rw := serve(t, fs, "/api/messages/dev_euis/X1?page=3")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp readingPageResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Items) != 0 || resp.Total != 12 || resp.TotalPages != 2 {
		t.Fatalf("unexpected page: %+v", resp)
	}
}

func TestListMessagesQueryConstruction(t *testing.T) {
	fs := &fakeStore{}
	rw := serve(t, fs, "/api/messages?routing_key=sensors.a&dev_eui=X1&start_date=2025-04-28")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	q := fs.lastQuery
	if q.RoutingKey != "sensors.a" || q.DevEUI != "X1" {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.DateField != store.DateFieldMessage {
		t.Fatalf("messages listing must range over %s, got %s", store.DateFieldMessage, q.DateField)
	}
}
