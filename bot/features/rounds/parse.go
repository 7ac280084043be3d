package rounds

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"betrounds/models"
)

// MaxSides keeps the side buttons and the outcome menu within Discord's
// component limits
const MaxSides = 20

var mentionPattern = regexp.MustCompile(`<@[!&]?(\d+)>|\b(\d{15,20})\b`)

// parseSides splits a comma separated side list
func parseSides(raw string) ([]string, error) {
	var sides []string
	for _, part := range strings.Split(raw, ",") {
		if side := strings.TrimSpace(part); side != "" {
			sides = append(sides, side)
		}
	}
	if len(sides) > MaxSides {
		return nil, fmt.Errorf("a round can have at most %d sides", MaxSides)
	}
	return sides, nil
}

// parseDenylist reads user and role mentions or bare IDs. Anything else in
// the text is ignored.
func parseDenylist(raw string) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, m := range mentionPattern.FindAllStringSubmatch(raw, -1) {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		id, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// parseOutcome reads an outcome select value
func parseOutcome(value string) (models.Outcome, error) {
	switch {
	case value == "draw":
		return models.Draw(), nil
	case value == "cancel":
		return models.Cancelled(), nil
	case strings.HasPrefix(value, "side:"):
		idx, err := strconv.Atoi(strings.TrimPrefix(value, "side:"))
		if err != nil {
			return models.Outcome{}, fmt.Errorf("invalid side %q", value)
		}
		return models.SideWins(idx), nil
	default:
		return models.Outcome{}, fmt.Errorf("unknown outcome %q", value)
	}
}

// parseSideButton reads round_side_<roundID>_<index>
func parseSideButton(customID string) (roundID int64, side int, err error) {
	parts := strings.Split(strings.TrimPrefix(customID, sideButtonPrefix), "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed side button %q", customID)
	}
	if roundID, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed round ID in %q: %w", customID, err)
	}
	if side, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("malformed side index in %q: %w", customID, err)
	}
	return roundID, side, nil
}
