package prompts

import (
	"sort"
	"strings"

	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

// exampleCatalog is the compiled-in few-shot example set. Examples are
// reference data shared across requests; selection is per request.
var exampleCatalog = []models.QueryExample{
	{
		Question: "Total deposits by country last month",
		SQL:      "SELECT c.country_name, SUM(t.amount) AS total_deposits FROM transactions t JOIN players p ON p.player_id = t.player_id JOIN countries c ON c.country_id = p.country_id WHERE t.transaction_type = 'deposit' AND t.created_at >= date_trunc('month', CURRENT_DATE) - INTERVAL '1 month' AND t.created_at < date_trunc('month', CURRENT_DATE) GROUP BY c.country_name ORDER BY total_deposits DESC",
		Intent:   models.IntentAggregation,
		Domain:   "Banking/Financial",
		Tables:   []string{"transactions", "players", "countries"},
	},
	{
		Question: "Top 5 players by withdrawal amount this week",
		SQL:      "SELECT p.player_id, p.username, SUM(t.amount) AS total_withdrawn FROM transactions t JOIN players p ON p.player_id = t.player_id WHERE t.transaction_type = 'withdrawal' AND t.created_at >= date_trunc('week', CURRENT_DATE) GROUP BY p.player_id, p.username ORDER BY total_withdrawn DESC LIMIT 5",
		Intent:   models.IntentAggregation,
		Domain:   "Banking/Financial",
		Tables:   []string{"transactions", "players"},
	},
	{
		Question: "Monthly revenue trend for the past year",
		SQL:      "SELECT date_trunc('month', created_at) AS month, SUM(amount) AS revenue FROM transactions WHERE transaction_type = 'deposit' AND created_at >= CURRENT_DATE - INTERVAL '12 months' GROUP BY 1 ORDER BY 1",
		Intent:   models.IntentTrend,
		Domain:   "Banking/Financial",
		Tables:   []string{"transactions"},
	},
	{
		Question: "Most played games by session count yesterday",
		SQL:      "SELECT g.game_name, COUNT(*) AS sessions FROM game_sessions s JOIN games g ON g.game_id = s.game_id WHERE s.started_at >= CURRENT_DATE - INTERVAL '1 day' AND s.started_at < CURRENT_DATE GROUP BY g.game_name ORDER BY sessions DESC LIMIT 10",
		Intent:   models.IntentAggregation,
		Domain:   "Gaming",
		Tables:   []string{"game_sessions", "games"},
	},
	{
		Question: "Revenue by game provider this quarter",
		SQL:      "SELECT g.provider, SUM(s.wager_amount - s.win_amount) AS ggr FROM game_sessions s JOIN games g ON g.game_id = s.game_id WHERE s.started_at >= date_trunc('quarter', CURRENT_DATE) GROUP BY g.provider ORDER BY ggr DESC",
		Intent:   models.IntentAggregation,
		Domain:   "Gaming",
		Tables:   []string{"game_sessions", "games"},
	},
	{
		Question: "Compare deposits this month versus last month",
		SQL:      "WITH current_month AS (SELECT SUM(amount) AS total FROM transactions WHERE transaction_type = 'deposit' AND created_at >= date_trunc('month', CURRENT_DATE)), previous_month AS (SELECT SUM(amount) AS total FROM transactions WHERE transaction_type = 'deposit' AND created_at >= date_trunc('month', CURRENT_DATE) - INTERVAL '1 month' AND created_at < date_trunc('month', CURRENT_DATE)) SELECT c.total AS current_total, p.total AS previous_total, c.total - p.total AS difference FROM current_month c, previous_month p",
		Intent:   models.IntentComparison,
		Domain:   "Banking/Financial",
		Tables:   []string{"transactions"},
	},
	{
		Question: "Weekly active players over the last 8 weeks",
		SQL:      "SELECT date_trunc('week', started_at) AS week, COUNT(DISTINCT player_id) AS active_players FROM game_sessions WHERE started_at >= CURRENT_DATE - INTERVAL '8 weeks' GROUP BY 1 ORDER BY 1",
		Intent:   models.IntentTrend,
		Domain:   "Gaming",
		Tables:   []string{"game_sessions"},
	},
	{
		Question: "Show details for player accounts registered today",
		SQL:      "SELECT player_id, username, email, country_id, registered_at FROM players WHERE registered_at >= CURRENT_DATE ORDER BY registered_at DESC LIMIT 100",
		Intent:   models.IntentDetail,
		Domain:   "Player/Customer",
		Tables:   []string{"players"},
	},
}

// scoredExample pairs an example with its relevance score during
// selection.
type scoredExample struct {
	example models.QueryExample
	score   float64
}

// FindRelevantExamples returns up to max examples ranked by relevance to
// the profile: intent match weighs heaviest, then domain, then shared
// table references. Ordering is deterministic (score desc, question asc).
func FindRelevantExamples(profile *models.BusinessContextProfile, tableNames []string, max int) []models.QueryExample {
	if max <= 0 {
		return nil
	}

	selected := make(map[string]bool, len(tableNames))
	for _, name := range tableNames {
		selected[name] = true
	}

	scored := make([]scoredExample, 0, len(exampleCatalog))
	for _, ex := range exampleCatalog {
		var score float64
		if ex.Intent == profile.Intent {
			score += 2
		}
		if ex.Domain != "" && strings.EqualFold(ex.Domain, profile.Domain.Name) {
			score += 1
		}
		for _, table := range ex.Tables {
			if selected[table] {
				score += 1
			}
		}
		if score == 0 {
			continue
		}
		scored = append(scored, scoredExample{example: ex, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].example.Question < scored[j].example.Question
	})

	if len(scored) > max {
		scored = scored[:max]
	}

	examples := make([]models.QueryExample, len(scored))
	for i, s := range scored {
		examples[i] = s.example
	}
	return examples
}
