package twitter

import (
	"fmt"
	"strings"
	"time"
)

// tweetEntry renders a timeline entry whose author lives under user_results.result.core.
func tweetEntry(id, handle string, likes int, created time.Time) string {
	return fmt.Sprintf(`{
		"entryId": "tweet-%[1]s",
		"content": {
			"entryType": "TimelineTimelineItem",
			"__typename": "TimelineTimelineItem",
			"itemContent": {
				"__typename": "TimelineTweet",
				"tweet_results": {
					"result": {
						"__typename": "Tweet",
						"rest_id": "%[1]s",
						"core": {"user_results": {"result": {
							"__typename": "User",
							"core": {"screen_name": "%[2]s", "name": "Name %[2]s"},
							"legacy": {}
						}}},
						"views": {"count": "1234"},
						"legacy": {
							"id_str": "%[1]s",
							"full_text": "tweet %[1]s by %[2]s",
							"created_at": "%[4]s",
							"favorite_count": %[3]d,
							"retweet_count": 3,
							"reply_count": 1
						}
					}
				}
			}
		}
	}`, id, handle, likes, created.UTC().Format(createdAtLayout))
}

func cursorEntry(value string) string {
	return fmt.Sprintf(`{
		"entryId": "cursor-bottom-1",
		"content": {
			"entryType": "TimelineTimelineCursor",
			"__typename": "TimelineTimelineCursor",
			"value": %q,
			"cursorType": "Bottom"
		}
	}`, value)
}

// timelineBody wraps entries in the HomeLatestTimeline envelope.
func timelineBody(cursor string, entries ...string) string {
	if cursor != "" {
		entries = append(entries, cursorEntry(cursor))
	}
	return `{"data":{"home":{"home_timeline_urt":{"instructions":[{"type":"TimelineAddEntries","entries":[` +
		strings.Join(entries, ",") + `]}]}}}}`
}
