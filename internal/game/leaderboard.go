package game

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// LeaderboardSize is how many places a rendered board shows.
const LeaderboardSize = 10

var medals = [3]string{"🥇", "🥈", "🥉"}

// SortResults orders results by value descending, then first name, then
// user id, so equal rolls always render in the same order.
func SortResults(rs []RollResult) {
	slices.SortFunc(rs, func(a, b RollResult) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		if c := strings.Compare(a.FirstName, b.FirstName); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
}

// RenderLeaderboard builds the message text for an event. The first three
// places get medals and the next seven a number. Names are rendered as
// Markdown user mentions.
func RenderLeaderboard(ev RollEvent, now time.Time, finished bool) string {
	var b strings.Builder

	if len(ev.Results) == 0 {
		b.WriteString("_No rolls yet_\n")
	} else {
		b.WriteString("Leaderboard:\n")
		for i, r := range ev.Results {
			if i == LeaderboardSize {
				break
			}
			place := fmt.Sprintf("%d.", i+1)
			if i < len(medals) {
				place = medals[i]
			}
			fmt.Fprintf(&b, "%s %s: *%d*\n", place, Mention(r.UserID, r.FirstName), r.Value)
		}
	}
	b.WriteString("\n")

	if finished {
		fmt.Fprintf(&b, "The roll is over! Participants: %d", len(ev.Results))
		return b.String()
	}
	left := ev.EndsAt.Sub(now).Round(time.Second)
	if left < 0 {
		left = 0
	}
	fmt.Fprintf(&b, "Time left: %02d:%02d", int(left.Minutes()), int(left.Seconds())%60)
	return b.String()
}

// Mention renders a Markdown link to a user profile.
func Mention(userID int64, name string) string {
	if strings.TrimSpace(name) == "" {
		name = "user"
	}
	name = strings.NewReplacer("[", "(", "]", ")", "*", "", "_", "", "`", "").Replace(name)
	return fmt.Sprintf("[%s](tg://user?id=%d)", name, userID)
}
