package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-modbot/internal/domain"
	"github.com/tbourn/go-modbot/internal/game"
	"github.com/tbourn/go-modbot/internal/services"
)

// ---------- stubs ----------

type stubSettings struct {
	rows    map[int64]domain.ChatSettings
	failGet bool
	failSet bool
	calls   []string
}

func newStubSettings() *stubSettings {
	return &stubSettings{rows: map[int64]domain.ChatSettings{}}
}

func (s *stubSettings) row(chatID int64) domain.ChatSettings {
	if r, ok := s.rows[chatID]; ok {
		return r
	}
	return domain.DefaultChatSettings(chatID)
}

func (s *stubSettings) Get(_ context.Context, chatID int64) (domain.ChatSettings, error) {
	if s.failGet {
		return domain.ChatSettings{}, errors.New("db down")
	}
	return s.row(chatID), nil
}

func (s *stubSettings) SetLinksAllowed(_ context.Context, chatID int64, allowed bool) (domain.ChatSettings, error) {
	s.calls = append(s.calls, "links")
	if s.failSet {
		return domain.ChatSettings{}, errors.New("db down")
	}
	r := s.row(chatID)
	r.LinksAllowed = allowed
	s.rows[chatID] = r
	return r, nil
}

func (s *stubSettings) SetSpamProtection(_ context.Context, chatID int64, enabled bool) (domain.ChatSettings, error) {
	s.calls = append(s.calls, "spam")
	if s.failSet {
		return domain.ChatSettings{}, errors.New("db down")
	}
	r := s.row(chatID)
	r.SpamProtectionEnabled = enabled
	s.rows[chatID] = r
	return r, nil
}

type stubStats struct {
	st  services.StateStats
	err error
}

func (s stubStats) Snapshot(context.Context) (services.StateStats, error) { return s.st, s.err }

// ---------- fixture ----------

type opsFixture struct {
	r        *gin.Engine
	settings *stubSettings
	croc     *game.Crocodile
	rolls    *game.RollStore
}

func newOpsFixture(t *testing.T, stats StatsSource) *opsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	croc, err := game.NewCrocodile(game.CrocodileConfig{Timeout: time.Hour}, []string{"kiwi"})
	if err != nil {
		t.Fatalf("NewCrocodile: %v", err)
	}
	rolls := game.NewRollStore(game.RollConfig{DefaultDuration: time.Minute, MaxDuration: time.Hour})
	t.Cleanup(func() {
		croc.StopAll()
		rolls.StopAll()
	})

	settings := newStubSettings()
	h := New(settings, croc, rolls, stats)

	r := gin.New()
	r.GET("/chats/:id/settings", h.GetSettings)
	r.PUT("/chats/:id/settings", h.UpdateSettings)
	r.GET("/chats/:id/crocodile", h.GetCrocodile)
	r.GET("/rolls/:id", h.GetRoll)
	r.GET("/stats", h.GetStats)
	return &opsFixture{r: r, settings: settings, croc: croc, rolls: rolls}
}

func (f *opsFixture) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	f.r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return er
}

// ---------- tests ----------

func TestGetSettings_DefaultsAndErrors(t *testing.T) {
	f := newOpsFixture(t, nil)

	w := f.do(http.MethodGet, "/chats/-1001/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var s domain.ChatSettings
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("json: %v", err)
	}
	if s.ChatID != -1001 || s.SpamProtectionEnabled || !s.LinksAllowed {
		t.Fatalf("unexpected settings: %+v", s)
	}

	for _, path := range []string{"/chats/abc/settings", "/chats/0/settings"} {
		w = f.do(http.MethodGet, path, "")
		if w.Code != http.StatusBadRequest || decodeError(t, w).Code != ErrCodeBadRequest {
			t.Fatalf("%s: status=%d body=%s", path, w.Code, w.Body.String())
		}
	}

	f.settings.failGet = true
	w = f.do(http.MethodGet, "/chats/5/settings", "")
	if w.Code != http.StatusInternalServerError || decodeError(t, w).Code != ErrCodeLoadFailed {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateSettings_PartialUpdate(t *testing.T) {
	f := newOpsFixture(t, nil)

	w := f.do(http.MethodPut, "/chats/7/settings", `{"spam_protection_enabled":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var s domain.ChatSettings
	_ = json.Unmarshal(w.Body.Bytes(), &s)
	if !s.SpamProtectionEnabled || !s.LinksAllowed {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if len(f.settings.calls) != 1 || f.settings.calls[0] != "spam" {
		t.Fatalf("only spam should be written: %v", f.settings.calls)
	}

	w = f.do(http.MethodPut, "/chats/7/settings", `{"spam_protection_enabled":false,"links_allowed":false}`)
	_ = json.Unmarshal(w.Body.Bytes(), &s)
	if w.Code != http.StatusOK || s.SpamProtectionEnabled || s.LinksAllowed {
		t.Fatalf("status=%d settings=%+v", w.Code, s)
	}
}

func TestUpdateSettings_Rejects(t *testing.T) {
	f := newOpsFixture(t, nil)

	cases := map[string]string{
		"empty object": `{}`,
		"bad json":     `{"links_allowed":`,
		"wrong type":   `{"links_allowed":"yes"}`,
	}
	for name, body := range cases {
		w := f.do(http.MethodPut, "/chats/7/settings", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%s", name, w.Code, w.Body.String())
		}
	}
	if len(f.settings.calls) != 0 {
		t.Fatalf("rejected requests must not write: %v", f.settings.calls)
	}

	f.settings.failSet = true
	w := f.do(http.MethodPut, "/chats/7/settings", `{"links_allowed":false}`)
	if w.Code != http.StatusInternalServerError || decodeError(t, w).Code != ErrCodeSaveFailed {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestGetCrocodile_HidesWord(t *testing.T) {
	f := newOpsFixture(t, nil)

	w := f.do(http.MethodGet, "/chats/-5/crocodile", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}

	if _, started := f.croc.TryStartGame(-5, 42); !started {
		t.Fatalf("TryStartGame failed")
	}
	w = f.do(http.MethodGet, "/chats/-5/crocodile", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "kiwi") {
		t.Fatalf("secret word leaked: %s", w.Body.String())
	}
	var v CrocodileView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v", err)
	}
	if v.ChatID != -5 || v.HostID != 42 || !v.EndsAt.After(v.StartedAt) {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestGetRoll(t *testing.T) {
	f := newOpsFixture(t, nil)

	if w := f.do(http.MethodGet, "/rolls/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if w := f.do(http.MethodGet, "/rolls/"+uuid.NewString(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}

	id := f.rolls.CreateEvent(-5, 42, time.Minute)
	f.rolls.TryRoll(id, 7, "Ann")
	w := f.do(http.MethodGet, "/rolls/"+id.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var ev game.RollEvent
	if err := json.Unmarshal(w.Body.Bytes(), &ev); err != nil {
		t.Fatalf("json: %v", err)
	}
	if ev.ID != id || len(ev.Results) != 1 || ev.Results[0].UserID != 7 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestGetStats(t *testing.T) {
	f := newOpsFixture(t, nil)
	if w := f.do(http.MethodGet, "/stats", ""); w.Code != http.StatusNotFound {
		t.Fatalf("nil stats: status=%d", w.Code)
	}

	f = newOpsFixture(t, stubStats{st: services.StateStats{CrocodileGames: 2, Chats: 9}})
	w := f.do(http.MethodGet, "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var st services.StateStats
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.CrocodileGames != 2 || st.Chats != 9 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	f = newOpsFixture(t, stubStats{err: errors.New("db down")})
	w = f.do(http.MethodGet, "/stats", "")
	if w.Code != http.StatusInternalServerError || decodeError(t, w).Code != ErrCodeStatsFailed {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
