package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// Action ids of the interactive controls attached to search replies.
const (
	ActionFilterChannel  = "filter_by_channel"
	ActionFilterUser     = "filter_by_user"
	ActionFilterStart    = "filter_start_date"
	ActionFilterEnd      = "filter_end_date"
	ActionMoreResults    = "more_results"
	ActionEnableReranker = "enable_reranker"
)

// DateLayout is the format Slack date pickers report selected dates in.
const DateLayout = "2006-01-02"

// FilterSet holds the metadata filters selected for a search. Zero values
// mean "not filtered".
type FilterSet struct {
	Channel string     `json:"c,omitempty"`
	User    string     `json:"u,omitempty"`
	Start   *time.Time `json:"s,omitempty"`
	End     *time.Time `json:"e,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f FilterSet) IsEmpty() bool {
	return f.Channel == "" && f.User == "" && f.Start == nil && f.End == nil
}

// Predicates renders the filters as backend metadata predicates, in
// channel, user, start, end order.
func (f FilterSet) Predicates() []string {
	var predicates []string
	if f.Channel != "" {
		predicates = append(predicates, ChannelFilter(f.Channel))
	}
	if f.User != "" {
		predicates = append(predicates, UserFilter(f.User))
	}
	if f.Start != nil {
		predicates = append(predicates, StartDateFilter(*f.Start))
	}
	if f.End != nil {
		predicates = append(predicates, EndDateFilter(*f.End))
	}
	return predicates
}

// ChannelFilter restricts results to messages posted in channelID.
func ChannelFilter(channelID string) string {
	return fmt.Sprintf("doc.channel = '%s'", channelID)
}

// UserFilter restricts results to messages posted by userID.
func UserFilter(userID string) string {
	return fmt.Sprintf("doc.poster = '%s'", userID)
}

// StartDateFilter keeps messages posted at or after t.
func StartDateFilter(t time.Time) string {
	return fmt.Sprintf("doc.timestamp >= %d", t.Unix())
}

// EndDateFilter keeps messages posted at or before t.
func EndDateFilter(t time.Time) string {
	return fmt.Sprintf("doc.timestamp <= %d", t.Unix())
}

// ParseDate parses a date picker value as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// FiltersFromState builds a FilterSet from the values of the interactive
// controls on a message. Unknown action ids, empty selections and
// unparseable dates are skipped.
func FiltersFromState(state *slack.BlockActionStates) FilterSet {
	var filters FilterSet
	if state == nil {
		return filters
	}

	blockIDs := make([]string, 0, len(state.Values))
	for blockID := range state.Values {
		blockIDs = append(blockIDs, blockID)
	}
	sort.Strings(blockIDs)

	for _, blockID := range blockIDs {
		for actionID, action := range state.Values[blockID] {
			switch actionID {
			case ActionFilterChannel:
				if action.SelectedChannel != "" {
					filters.Channel = action.SelectedChannel
				}
			case ActionFilterUser:
				if action.SelectedUser != "" {
					filters.User = action.SelectedUser
				}
			case ActionFilterStart:
				if t, err := ParseDate(action.SelectedDate); err == nil {
					filters.Start = &t
				}
			case ActionFilterEnd:
				if t, err := ParseDate(action.SelectedDate); err == nil {
					filters.End = &t
				}
			}
		}
	}

	return filters
}
