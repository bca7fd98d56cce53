package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"telemetry-service/internal/config"
	"telemetry-service/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Timestamps are stored in UTC and converted to the fixed display offset
// only here, at the outbound edge.
var displayZone = time.FixedZone("KST", 9*60*60)

const displayFormat = "2006-01-02 15:04:05 KST"

type Store interface {
	DistinctDevEUIs(ctx context.Context) ([]string, error)
	LatestPerDevice(ctx context.Context) ([]store.DeviceSummary, error)
	FindMessages(ctx context.Context, q store.MessageQuery) (store.MessagePage, error)
	FindReadings(ctx context.Context, q store.MessageQuery) (store.ReadingPage, error)
}

type Server struct {
	store Store
}

func New(st Store) *Server {
	return &Server{store: st}
}

func (s *Server) Handler(c config.CORSConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	opts := cors.Options{
		AllowedOrigins:   c.Origins,
		AllowedHeaders:   c.Headers,
		AllowCredentials: c.AllowCredentials,
	}
	// rs/cors has no wildcard for methods; leave nil for its default set.
	if len(c.Methods) != 1 || c.Methods[0] != "*" {
		opts.AllowedMethods = c.Methods
	}
	r.Use(cors.New(opts).Handler)

	r.Get("/", s.handleHealth)
	r.Route("/api/messages", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/", s.handleListMessages)
		r.Get("/dev_euis", s.handleListDevEUIs)
		r.Get("/devices", s.handleListDevices)
		r.Get("/dev_euis/{devEUI}", s.handleDeviceDetail)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListDevEUIs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.DistinctDevEUIs(r.Context())
	if err != nil {
		slog.Error("dev_euis query failed", "error", err)
		http.Error(w, "could not list devices", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.LatestPerDevice(r.Context())
	if err != nil {
		slog.Error("latest-state query failed", "error", err)
		http.Error(w, "could not load device data", http.StatusInternalServerError)
		return
	}
	out := make([]deviceSummaryDTO, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, toDeviceSummaryDTO(sum))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeviceDetail(w http.ResponseWriter, r *http.Request) {
	devEUI := strings.TrimSpace(chi.URLParam(r, "devEUI"))
	if devEUI == "" {
		http.Error(w, "devEUI is required", http.StatusBadRequest)
		return
	}

	q := store.MessageQuery{
		DevEUI:   devEUI,
		Page:     intParam(r, "page", 1),
		PageSize: intParam(r, "page_size", 10),
		SortBy:   store.DateFieldMessage,
		SortDesc: true,
		// The detail range applies to the values-level timestamp; the sort
		// stays on the message-level path. Both paths are intentional.
		DateField: store.DateFieldValues,
	}
	var err error
	if q.StartDate, err = parseDateBound(r.URL.Query().Get("start_date"), false); err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	if q.EndDate, err = parseDateBound(r.URL.Query().Get("end_date"), true); err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	page, err := s.store.FindReadings(r.Context(), q)
	if err != nil {
		slog.Error("device detail query failed", "dev_eui", devEUI, "error", err)
		http.Error(w, "could not query messages", http.StatusInternalServerError)
		return
	}

	items := make([]readingDTO, 0, len(page.Items))
	for _, it := range page.Items {
		items = append(items, toReadingDTO(it))
	}
	writeJSON(w, http.StatusOK, readingPageResponse{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	q := store.MessageQuery{
		RoutingKey: strings.TrimSpace(r.URL.Query().Get("routing_key")),
		DevEUI:     strings.TrimSpace(r.URL.Query().Get("dev_eui")),
		Page:       intParam(r, "page", 1),
		PageSize:   intParam(r, "page_size", 10),
		SortBy:     store.DateFieldMessage,
		SortDesc:   true,
		DateField:  store.DateFieldMessage,
	}
	var err error
	if q.StartDate, err = parseDateBound(r.URL.Query().Get("start_date"), false); err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	if q.EndDate, err = parseDateBound(r.URL.Query().Get("end_date"), true); err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	page, err := s.store.FindMessages(r.Context(), q)
	if err != nil {
		slog.Error("messages query failed", "error", err)
		http.Error(w, "could not query messages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type deviceSummaryDTO struct {
	DevEUI         string     `json:"dev_eui"`
	DeviceName     string     `json:"device_name"`
	Company        string     `json:"company"`
	SensorType     string     `json:"sensor_type"`
	Battery        int        `json:"battery"`
	Longitude      float64    `json:"longitude"`
	Latitude       float64    `json:"latitude"`
	PublishedAt    *time.Time `json:"publishedAt"`
	PublishedAtKST string     `json:"published_at_kst,omitempty"`
}

func toDeviceSummaryDTO(s store.DeviceSummary) deviceSummaryDTO {
	dto := deviceSummaryDTO{
		DevEUI:     s.DevEUI,
		DeviceName: s.DeviceName,
		Company:    s.Company,
		SensorType: s.SensorType,
		Battery:    s.Battery,
		Longitude:  s.Longitude,
		Latitude:   s.Latitude,
	}
	if s.PublishedAt != nil {
		local := s.PublishedAt.In(displayZone)
		dto.PublishedAt = &local
		dto.PublishedAtKST = local.Format(displayFormat)
	}
	return dto
}

type readingDTO struct {
	Battery        int        `json:"battery"`
	Longitude      float64    `json:"longitude"`
	Latitude       float64    `json:"latitude"`
	PublishedAt    *time.Time `json:"publishedAt"`
	PublishedAtKST string     `json:"published_at_kst,omitempty"`
}

func toReadingDTO(r store.Reading) readingDTO {
	dto := readingDTO{
		Battery:   r.Battery,
		Longitude: r.Longitude,
		Latitude:  r.Latitude,
	}
	if r.PublishedAt != nil {
		local := r.PublishedAt.In(displayZone)
		dto.PublishedAt = &local
		dto.PublishedAtKST = local.Format(displayFormat)
	}
	return dto
}

type readingPageResponse struct {
	Items      []readingDTO `json:"items"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// parseDateBound interprets a calendar date as the display timezone's local
// midnight (or end of day) and converts it to UTC. A full date-time is
// accepted as the second syntax; only its date part is kept, matching the
// boundary semantics. Unparseable input is the caller's error.
func parseDateBound(v string, end bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", v, displayZone)
	if err != nil {
		d, err = time.ParseInLocation("2006-01-02T15:04:05", v, displayZone)
		if err != nil {
			return nil, err
		}
	}
	y, m, day := d.Date()
	var t time.Time
	if end {
		t = time.Date(y, m, day, 23, 59, 59, 999999000, displayZone)
	} else {
		t = time.Date(y, m, day, 0, 0, 0, 0, displayZone)
	}
	u := t.UTC()
	return &u, nil
}

func intParam(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 1 {
		return n
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
