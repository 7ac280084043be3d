package common

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// Invoker is the person behind an interaction
type Invoker struct {
	ID          int64
	Username    string
	DisplayName string
	RoleIDs     []int64
}

// InvokerOf extracts the invoking user, in a guild or a DM
func InvokerOf(i *discordgo.InteractionCreate) (*Invoker, error) {
	var user *discordgo.User
	var roles []string
	displayName := ""

	switch {
	case i.Member != nil && i.Member.User != nil:
		user = i.Member.User
		roles = i.Member.Roles
		displayName = i.Member.Nick
	case i.User != nil:
		user = i.User
	default:
		return nil, fmt.Errorf("interaction %s has no user", i.ID)
	}

	id, err := strconv.ParseInt(user.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID %q: %w", user.ID, err)
	}

	invoker := &Invoker{ID: id, Username: user.Username, DisplayName: displayName}
	if invoker.DisplayName == "" {
		invoker.DisplayName = user.GlobalName
	}
	if invoker.DisplayName == "" {
		invoker.DisplayName = user.Username
	}
	for _, r := range roles {
		roleID, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			continue
		}
		invoker.RoleIDs = append(invoker.RoleIDs, roleID)
	}
	return invoker, nil
}

// ParseSnowflake parses a Discord ID, treating an empty string as zero
func ParseSnowflake(id string) (int64, error) {
	if id == "" {
		return 0, nil
	}
	return strconv.ParseInt(id, 10, 64)
}

// Snowflake formats a Discord ID for the API
func Snowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}
