package twitter

import (
	"fmt"
	"regexp"
)

const (
	twitterBase = "https://x.com/i/api/graphql"

	homeLatestTimeline = "HomeLatestTimeline"
)

// BearerToken is the public bearer token of the x.com web app.
const BearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

var queryIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// Endpoint holds the operation ID, operation name, and per-operation feature flags.
type Endpoint struct {
	ID       string
	Name     string
	Features map[string]any
}

// URL returns the full URL for this endpoint.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s/%s/%s", twitterBase, e.ID, e.Name)
}

// FollowingTimeline returns the HomeLatestTimeline endpoint for the given query ID.
// The ID rotates with web-app deploys, so it is supplied by the user.
func FollowingTimeline(queryID string) (Endpoint, error) {
	if err := ValidateQueryID(queryID); err != nil {
		return Endpoint{}, err
	}
	return Endpoint{ID: queryID, Name: homeLatestTimeline, Features: gqlFeatures()}, nil
}

// ValidateQueryID checks the shape of a GraphQL query identifier.
func ValidateQueryID(queryID string) error {
	if queryID == "" {
		return &ConfigurationError{Field: "timeline_query_id", Reason: "missing"}
	}
	if !queryIDRe.MatchString(queryID) {
		return &ConfigurationError{Field: "timeline_query_id", Reason: fmt.Sprintf("malformed value %q", queryID)}
	}
	return nil
}

// gqlFeatures returns the feature flags the HomeLatestTimeline operation expects.
func gqlFeatures() map[string]any {
	return map[string]any{
		"articles_preview_enabled":                                                true,
		"c9s_tweet_anatomy_moderator_badge_enabled":                               true,
		"communities_web_enable_tweet_community_results_fetch":                    true,
		"creator_subscriptions_tweet_preview_api_enabled":                         true,
		"freedom_of_speech_not_reach_fetch_enabled":                               true,
		"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
		"longform_notetweets_consumption_enabled":                                 true,
		"longform_notetweets_inline_media_enabled":                                true,
		"longform_notetweets_rich_text_read_enabled":                              true,
		"post_ctas_fetch_enabled":                                                 true,
		"premium_content_api_read_enabled":                                        false,
		"profile_label_improvements_pcf_label_in_post_enabled":                   true,
		"responsive_web_edit_tweet_api_enabled":                                   true,
		"responsive_web_enhance_cards_enabled":                                    false,
		"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
		"responsive_web_graphql_timeline_navigation_enabled":                      true,
		"responsive_web_grok_analysis_button_from_backend":                        true,
		"responsive_web_grok_analyze_button_fetch_trends_enabled":                 false,
		"responsive_web_grok_analyze_post_followups_enabled":                      true,
		"responsive_web_grok_annotations_enabled":                                 true,
		"responsive_web_grok_community_note_auto_translation_is_enabled":          false,
		"responsive_web_grok_image_annotation_enabled":                            true,
		"responsive_web_grok_imagine_annotation_enabled":                          true,
		"responsive_web_grok_share_attachment_enabled":                            true,
		"responsive_web_grok_show_grok_translated_post":                           false,
		"responsive_web_jetfuel_frame":                                            true,
		"responsive_web_profile_redirect_enabled":                                 false,
		"responsive_web_twitter_article_tweet_consumption_enabled":                true,
		"rweb_tipjar_consumption_enabled":                                         false,
		"rweb_video_screen_enabled":                                               false,
		"standardized_nudges_misinfo":                                             true,
		"tweet_awards_web_tipping_enabled":                                        false,
		"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
		"verified_phone_label_enabled":                                            true,
		"view_counts_everywhere_api_enabled":                                      true,
	}
}
