package services

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/tbourn/go-modbot/internal/bot"
)

// StateStats is a point-in-time view of the bot's in-memory state.
type StateStats struct {
	FloodTracked     int    `json:"flood_tracked"`
	ThrottlesActive  int    `json:"throttles_active"`
	ComplaintsLedger int    `json:"complaints_ledger"`
	SettingsCached   int    `json:"settings_cached"`
	CrocodileGames   int    `json:"crocodile_games"`
	RollEvents       int    `json:"roll_events"`
	WarnedUsers      int64  `json:"warned_users"`
	WarningsTotal    int64  `json:"warnings_total"`
	Chats            int64  `json:"chats"`
	SpamProtected    int64  `json:"spam_protected"`
	LinksRestricted  int64  `json:"links_restricted"`
	Goroutines       int    `json:"goroutines"`
	HeapAllocBytes   uint64 `json:"heap_alloc_bytes"`
}

// Snapshot gathers StateStats. Database figures are skipped when no
// StatsRepo is configured.
func (h *Handlers) Snapshot(ctx context.Context) (StateStats, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	st := StateStats{
		FloodTracked:     h.Flood.Tracked(),
		ThrottlesActive:  h.Throttle.Active(),
		ComplaintsLedger: h.Ledger.Len(),
		SettingsCached:   h.Settings.Cache.Len(),
		CrocodileGames:   h.Croc.Active(),
		RollEvents:       h.Rolls.Active(),
		Goroutines:       runtime.NumGoroutine(),
		HeapAllocBytes:   ms.HeapAlloc,
	}
	if h.Stats == nil {
		return st, nil
	}

	users, total, err := h.Stats.WarningTotals(ctx, h.DB)
	if err != nil {
		return st, fmt.Errorf("warning totals: %w", err)
	}
	st.WarnedUsers, st.WarningsTotal = users, total

	ss, err := h.Stats.ChatSettingsStats(ctx, h.DB)
	if err != nil {
		return st, fmt.Errorf("settings stats: %w", err)
	}
	st.Chats, st.SpamProtected, st.LinksRestricted = ss.Chats, ss.SpamProtected, ss.LinksRestricted
	return st, nil
}

func (h *Handlers) handleStats(ctx context.Context, u bot.Update) error {
	msg := u.Message
	if !h.isOwner(msg.From.ID) {
		return nil
	}
	st, err := h.Snapshot(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("📊 Bot state\n\n")
	fmt.Fprintf(&b, "Flood trackers: %d\n", st.FloodTracked)
	fmt.Fprintf(&b, "Report cooldowns: %d\n", st.ThrottlesActive)
	fmt.Fprintf(&b, "Processed reports: %d\n", st.ComplaintsLedger)
	fmt.Fprintf(&b, "Cached settings: %d\n", st.SettingsCached)
	fmt.Fprintf(&b, "Crocodile games: %d\n", st.CrocodileGames)
	fmt.Fprintf(&b, "Roll events: %d\n\n", st.RollEvents)
	fmt.Fprintf(&b, "Chats: %d (spam protection %d, links off %d)\n", st.Chats, st.SpamProtected, st.LinksRestricted)
	fmt.Fprintf(&b, "Warned users: %d, warnings: %d\n\n", st.WarnedUsers, st.WarningsTotal)
	fmt.Fprintf(&b, "Goroutines: %d\nHeap: %.1f MiB", st.Goroutines, float64(st.HeapAllocBytes)/(1<<20))

	if _, err := h.Client.Send(ctx, msg.Chat.ID, b.String(), nil); err != nil {
		return fmt.Errorf("send stats: %w", err)
	}
	return nil
}
