package upstream

import (
	"encoding/json"
	"testing"

	"github.com/instatrack/instatrack/internal/task"
)

func TestRequestForTask(t *testing.T) {
	t.Parallel()

	influencer := &task.Task{Kind: task.KindInfluencer, Username: "natgeo"}
	request, err := RequestForTask(influencer)
	if err != nil {
		t.Fatalf("RequestForTask(influencer) unexpected error: %v", err)
	}
	if request.Endpoint != "/fetch_user_info_by_username_v2" {
		t.Fatalf("influencer endpoint = %q", request.Endpoint)
	}
	if request.Params["username"] != "natgeo" {
		t.Fatalf("influencer params = %v", request.Params)
	}

	post := &task.Task{Kind: task.KindPost, PostCode: "DAbCdEfGh"}
	request, err = RequestForTask(post)
	if err != nil {
		t.Fatalf("RequestForTask(post) unexpected error: %v", err)
	}
	if request.Endpoint != "/fetch_post_details_by_url" {
		t.Fatalf("post endpoint = %q", request.Endpoint)
	}
	if request.Params["url"] != "https://www.instagram.com/p/DAbCdEfGh/" {
		t.Fatalf("post params = %v", request.Params)
	}

	if _, err := RequestForTask(&task.Task{Kind: task.Kind("story")}); err == nil {
		t.Fatalf("RequestForTask(unknown kind) expected error, got nil")
	}
}

func TestExtractMetricsPayload(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		kind    task.Kind
		data    string
		want    string
		wantErr bool
	}{
		{
			name: "influencer_payload_passes_through",
			kind: task.KindInfluencer,
			data: `{"id":"123","follower_count":42}`,
			want: `{"id":"123","follower_count":42}`,
		},
		{
			name: "post_payload_unwraps_nested_metrics",
			kind: task.KindPost,
			data: `{"data":{"metrics":{"like_count":7,"play_count":100}}}`,
			want: `{"like_count":7,"play_count":100}`,
		},
		{
			name: "post_payload_without_nesting_passes_through",
			kind: task.KindPost,
			data: `{"like_count":7}`,
			want: `{"like_count":7}`,
		},
		{
			name:    "post_payload_malformed",
			kind:    task.KindPost,
			data:    `[1,2`,
			wantErr: true,
		},
		{
			name:    "unknown_kind",
			kind:    task.Kind("story"),
			data:    `{}`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractMetricsPayload(tc.kind, json.RawMessage(tc.data))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ExtractMetricsPayload() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractMetricsPayload() unexpected error: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("ExtractMetricsPayload() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDecodeInfluencerMetrics(t *testing.T) {
	t.Parallel()

	metrics, err := DecodeInfluencerMetrics(json.RawMessage(`{
		"id": "17841400039600391",
		"biography": "nature photography",
		"follower_count": 283000000,
		"following_count": 140,
		"media_count": 29000
	}`))
	if err != nil {
		t.Fatalf("DecodeInfluencerMetrics() unexpected error: %v", err)
	}
	userID, err := metrics.ID.Int64()
	if err != nil {
		t.Fatalf("ID.Int64() unexpected error: %v", err)
	}
	if userID != 17841400039600391 {
		t.Fatalf("user id = %d", userID)
	}
	if metrics.FollowerCount != 283000000 || metrics.FollowingCount != 140 || metrics.MediaCount != 29000 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
	if metrics.Biography != "nature photography" {
		t.Fatalf("biography = %q", metrics.Biography)
	}

	if _, err := DecodeInfluencerMetrics(json.RawMessage(`[`)); err == nil {
		t.Fatalf("DecodeInfluencerMetrics(malformed) expected error, got nil")
	}
}

func TestDecodePostMetrics(t *testing.T) {
	t.Parallel()

	metrics, err := DecodePostMetrics(json.RawMessage(`{
		"post_id": "3472859120",
		"like_count": 1200,
		"comment_count": 45,
		"play_count": 98000
	}`))
	if err != nil {
		t.Fatalf("DecodePostMetrics() unexpected error: %v", err)
	}
	if metrics.PostID != "3472859120" {
		t.Fatalf("post id = %q", metrics.PostID)
	}
	if metrics.LikeCount != 1200 || metrics.CommentCount != 45 || metrics.PlayCount != 98000 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}
