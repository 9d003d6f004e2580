package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-modbot/internal/bot"
	"github.com/tbourn/go-modbot/internal/cache"
	"github.com/tbourn/go-modbot/internal/config"
	"github.com/tbourn/go-modbot/internal/domain"
	"github.com/tbourn/go-modbot/internal/game"
	"github.com/tbourn/go-modbot/internal/repo"
)

// ----- Fake transport -----

type call struct {
	Method string
	ChatID int64
	UserID int64
	MsgID  int
	Text   string
	KB     bot.Keyboard
	Alert  bool
	Until  time.Time
}

type fakeClient struct {
	mu     sync.Mutex
	calls  []call
	nextID int

	statuses map[int64]bot.MemberStatus
	admins   []bot.Member

	sendErr     map[int64]error // by chat id
	restrictErr error
	banErr      error
	editErr     error
}

func newFakeClient() *fakeClient {
	return &fakeClient{statuses: map[int64]bot.MemberStatus{}, sendErr: map[int64]error{}, nextID: 100}
}

func (f *fakeClient) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeClient) Send(_ context.Context, chatID int64, text string, opts *bot.SendOptions) (int, error) {
	f.mu.Lock()
	err := f.sendErr[chatID]
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	c := call{Method: "send", ChatID: chatID, MsgID: id, Text: text}
	if opts != nil {
		c.KB = opts.Keyboard
	}
	f.record(c)
	return id, nil
}

func (f *fakeClient) EditText(_ context.Context, chatID int64, messageID int, text string, opts *bot.SendOptions) error {
	c := call{Method: "edit", ChatID: chatID, MsgID: messageID, Text: text}
	if opts != nil {
		c.KB = opts.Keyboard
	}
	f.record(c)
	return f.editErr
}

func (f *fakeClient) EditMarkup(_ context.Context, chatID int64, messageID int, kb bot.Keyboard) error {
	f.record(call{Method: "markup", ChatID: chatID, MsgID: messageID, KB: kb})
	return f.editErr
}

func (f *fakeClient) Delete(_ context.Context, chatID int64, messageID int) error {
	f.record(call{Method: "delete", ChatID: chatID, MsgID: messageID})
	return nil
}

func (f *fakeClient) Forward(_ context.Context, toChatID, fromChatID int64, messageID int) error {
	f.record(call{Method: "forward", ChatID: toChatID, UserID: fromChatID, MsgID: messageID})
	return nil
}

func (f *fakeClient) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	f.record(call{Method: "answer", Text: text, Alert: alert})
	return nil
}

func (f *fakeClient) RestrictUntil(_ context.Context, chatID, userID int64, until time.Time) error {
	if f.restrictErr != nil {
		return f.restrictErr
	}
	f.record(call{Method: "restrict", ChatID: chatID, UserID: userID, Until: until})
	return nil
}

func (f *fakeClient) Ban(_ context.Context, chatID, userID int64) error {
	if f.banErr != nil {
		return f.banErr
	}
	f.record(call{Method: "ban", ChatID: chatID, UserID: userID})
	return nil
}

func (f *fakeClient) MemberStatus(_ context.Context, chatID, userID int64) (bot.MemberStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.statuses[userID]; ok {
		return st, nil
	}
	return bot.StatusMember, nil
}

func (f *fakeClient) Admins(context.Context, int64) ([]bot.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bot.Member(nil), f.admins...), nil
}

func (f *fakeClient) Me(context.Context) (bot.User, error) {
	return bot.User{ID: 1, IsBot: true, Username: "modbot"}, nil
}

// byMethod returns the recorded calls of one kind, in order.
func (f *fakeClient) byMethod(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// lastText returns the text of the last call of method, or "".
func (f *fakeClient) lastText(method string) string {
	cs := f.byMethod(method)
	if len(cs) == 0 {
		return ""
	}
	return cs[len(cs)-1].Text
}

func (f *fakeClient) sentContaining(sub string) bool {
	for _, c := range f.byMethod("send") {
		if strings.Contains(c.Text, sub) {
			return true
		}
	}
	return false
}

// ----- Fake repos -----

type fakeSettingsRepo struct {
	mu    sync.Mutex
	rows  map[int64]domain.ChatSettings
	gets  int
	err   error
	calls []string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{rows: map[int64]domain.ChatSettings{}}
}

func (r *fakeSettingsRepo) update(op string, chatID int64, fn func(*domain.ChatSettings)) (*domain.ChatSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op)
	if r.err != nil {
		return nil, r.err
	}
	cs, ok := r.rows[chatID]
	if !ok {
		cs = domain.DefaultChatSettings(chatID)
	}
	fn(&cs)
	r.rows[chatID] = cs
	return &cs, nil
}

func (r *fakeSettingsRepo) GetOrCreateChatSettings(_ context.Context, _ *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	return r.update("get", chatID, func(*domain.ChatSettings) {})
}

func (r *fakeSettingsRepo) SetLinksAllowed(_ context.Context, _ *gorm.DB, chatID int64, v bool) (*domain.ChatSettings, error) {
	return r.update("setLinks", chatID, func(cs *domain.ChatSettings) { cs.LinksAllowed = v })
}

func (r *fakeSettingsRepo) SetSpamProtection(_ context.Context, _ *gorm.DB, chatID int64, v bool) (*domain.ChatSettings, error) {
	return r.update("setSpam", chatID, func(cs *domain.ChatSettings) { cs.SpamProtectionEnabled = v })
}

func (r *fakeSettingsRepo) ToggleLinksAllowed(_ context.Context, _ *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	return r.update("toggleLinks", chatID, func(cs *domain.ChatSettings) { cs.LinksAllowed = !cs.LinksAllowed })
}

func (r *fakeSettingsRepo) ToggleSpamProtection(_ context.Context, _ *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	return r.update("toggleSpam", chatID, func(cs *domain.ChatSettings) { cs.SpamProtectionEnabled = !cs.SpamProtectionEnabled })
}

type fakeWarningRepo struct {
	mu        sync.Mutex
	rows      map[[2]int64]*domain.WarningRecord
	conflicts int // DecayWarning fails with ErrConflict this many times
	decays    int
	listErr   error
}

func newFakeWarningRepo() *fakeWarningRepo {
	return &fakeWarningRepo{rows: map[[2]int64]*domain.WarningRecord{}}
}

func (r *fakeWarningRepo) put(rec domain.WarningRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[[2]int64{rec.ChatID, rec.UserID}] = &rec
}

func (r *fakeWarningRepo) AddWarning(_ context.Context, _ *gorm.DB, chatID, userID int64, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]int64{chatID, userID}
	rec, ok := r.rows[k]
	if !ok {
		rec = &domain.WarningRecord{ChatID: chatID, UserID: userID}
		r.rows[k] = rec
	}
	rec.Count++
	rec.Version++
	rec.LastWarnedAt = now
	return rec.Count, nil
}

func (r *fakeWarningRepo) GetWarnings(ctx context.Context, db *gorm.DB, chatID, userID int64) (int, error) {
	rec, err := r.GetWarning(ctx, db, chatID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

func (r *fakeWarningRepo) GetWarning(_ context.Context, _ *gorm.DB, chatID, userID int64) (*domain.WarningRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[[2]int64{chatID, userID}]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeWarningRepo) ListStaleWarnings(_ context.Context, _ *gorm.DB, cutoff time.Time, limit int) ([]domain.WarningRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.WarningRecord
	for _, rec := range r.rows {
		if rec.Count > 0 && !rec.LastWarnedAt.After(cutoff) && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeWarningRepo) DecayWarning(_ context.Context, _ *gorm.DB, rec *domain.WarningRecord, steps int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return repo.ErrConflict
	}
	stored := r.rows[[2]int64{rec.ChatID, rec.UserID}]
	if stored == nil || stored.Version != rec.Version {
		return repo.ErrConflict
	}
	n := stored.Count - steps
	if n < 0 {
		n = 0
	}
	stored.Count, stored.Version, stored.LastWarnedAt = n, stored.Version+1, now
	*rec = *stored
	r.decays++
	return nil
}

func (r *fakeWarningRepo) count(chatID, userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.rows[[2]int64{chatID, userID}]; ok {
		return rec.Count
	}
	return 0
}

type fakeStatsRepo struct{}

func (fakeStatsRepo) WarningTotals(context.Context, *gorm.DB) (int64, int64, error) {
	return 2, 5, nil
}

func (fakeStatsRepo) ChatSettingsStats(context.Context, *gorm.DB) (repo.SettingsStats, error) {
	return repo.SettingsStats{Chats: 3, SpamProtected: 1, LinksRestricted: 2}, nil
}

// ----- Fixture -----

type fixture struct {
	h        *Handlers
	client   *fakeClient
	settings *fakeSettingsRepo
	warnings *fakeWarningRepo
	now      time.Time
}

const (
	groupID = int64(-1001)
	adminID = int64(10)
	userID  = int64(20)
	otherID = int64(30)
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	client := newFakeClient()
	client.statuses[adminID] = bot.StatusAdministrator
	client.admins = []bot.Member{
		{User: bot.User{ID: adminID, FirstName: "Ada"}, Status: bot.StatusAdministrator},
		{User: bot.User{ID: 1, IsBot: true}, Status: bot.StatusAdministrator},
	}

	flood := cache.NewFloodStore(cache.FloodConfig{
		Mode: cache.ModeWindow, Limit: 3, Window: time.Minute, EntryTTL: time.Minute, WarnTTL: time.Minute,
	}, clock, 0)
	throttle := cache.NewThrottleStore(clock, 0)
	ledger := cache.NewProcessedStore(time.Hour, clock, 0)
	sc := cache.NewSettingsCache(time.Minute, clock, 0)
	croc, err := game.NewCrocodile(game.CrocodileConfig{Timeout: time.Hour}, []string{"kiwi"})
	if err != nil {
		t.Fatalf("NewCrocodile: %v", err)
	}
	rolls := game.NewRollStore(game.RollConfig{DefaultDuration: time.Minute, MaxDuration: time.Hour})
	t.Cleanup(func() {
		flood.Close()
		throttle.Close()
		ledger.Close()
		sc.Close()
		croc.StopAll()
		rolls.StopAll()
	})

	settings := newFakeSettingsRepo()
	warnings := newFakeWarningRepo()
	h := &Handlers{
		Client:   client,
		Settings: &SettingsService{Repo: settings, Cache: sc},
		Warnings: &WarningService{Repo: warnings, Flood: flood, Window: 3 * time.Minute, Now: clock},
		Stats:    fakeStatsRepo{},
		Flood:    flood,
		Throttle: throttle,
		Ledger:   ledger,
		Croc:     croc,
		Rolls:    rolls,
		Moderation: config.ModerationConfig{
			WarnMax:            3,
			MuteDuration:       24 * time.Hour,
			ReportThrottle:     3 * time.Minute,
			ReportMuteDuration: 30 * time.Minute,
			ProcessedRetention: time.Hour,
		},
		Owners:   []int64{99},
		Username: "modbot",
		Now:      clock,
	}
	return &fixture{h: h, client: client, settings: settings, warnings: warnings, now: now}
}

func (f *fixture) dispatch(u bot.Update) {
	NewDispatcher(f.h.Routes()...).Dispatch(context.Background(), u)
}

var msgSeq int

func groupMessage(from int64, text string) bot.Update {
	msgSeq++
	return bot.Update{Message: &bot.Message{
		ID:   msgSeq,
		Chat: bot.Chat{ID: groupID, Type: bot.ChatSuperGroup, Title: "Test group"},
		From: &bot.User{ID: from, FirstName: fmt.Sprintf("u%d", from)},
		Text: text,
	}}
}

func callback(from int64, chatID int64, messageID int, data string) bot.Update {
	return bot.Update{Callback: &bot.Callback{
		ID:      "cb",
		From:    bot.User{ID: from, FirstName: fmt.Sprintf("u%d", from)},
		Message: &bot.Message{ID: messageID, Chat: bot.Chat{ID: chatID, Type: bot.ChatSuperGroup}, Text: "original"},
		Data:    data,
	}}
}
