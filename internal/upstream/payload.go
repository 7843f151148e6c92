package upstream

import (
	"encoding/json"
	"fmt"

	"github.com/instatrack/instatrack/internal/task"
)

// Request describes one upstream fetch: endpoint path plus query params.
type Request struct {
	Endpoint string
	Params   map[string]string
}

// RequestForTask resolves the endpoint and parameters for a task. The
// mapping is static per kind and never depends on fetched data.
func RequestForTask(t *task.Task) (Request, error) {
	switch t.Kind {
	case task.KindInfluencer:
		return Request{
			Endpoint: "/fetch_user_info_by_username_v2",
			Params:   map[string]string{"username": t.Username},
		}, nil
	case task.KindPost:
		return Request{
			Endpoint: "/fetch_post_details_by_url",
			Params:   map[string]string{"url": fmt.Sprintf("https://www.instagram.com/p/%s/", t.PostCode)},
		}, nil
	default:
		return Request{}, fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

// InfluencerMetrics is the metrics object of a profile response.
type InfluencerMetrics struct {
	ID             json.Number `json:"id"`
	Biography      string      `json:"biography"`
	FollowerCount  int64       `json:"follower_count"`
	FollowingCount int64       `json:"following_count"`
	MediaCount     int64       `json:"media_count"`
}

// PostMetrics is the metrics object of a post-detail response.
type PostMetrics struct {
	PostID       string `json:"post_id"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
	PlayCount    int64  `json:"play_count"`
}

// ExtractMetricsPayload normalizes the raw "data" payload into the metrics
// object for the task's kind. Influencer profile responses carry metrics at
// the top level; post-detail responses nest them one level deeper under
// data.metrics.
func ExtractMetricsPayload(kind task.Kind, data json.RawMessage) (json.RawMessage, error) {
	switch kind {
	case task.KindInfluencer:
		return data, nil
	case task.KindPost:
		var detail struct {
			Data struct {
				Metrics json.RawMessage `json:"metrics"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &detail); err != nil {
			return nil, fmt.Errorf("decode post detail payload: %w", err)
		}
		if len(detail.Data.Metrics) > 0 && string(detail.Data.Metrics) != "null" {
			return detail.Data.Metrics, nil
		}
		// Some responses already carry the metrics object at the top level.
		return data, nil
	default:
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}
}

// DecodeInfluencerMetrics decodes a normalized influencer metrics payload.
func DecodeInfluencerMetrics(payload json.RawMessage) (InfluencerMetrics, error) {
	var metrics InfluencerMetrics
	if err := json.Unmarshal(payload, &metrics); err != nil {
		return InfluencerMetrics{}, fmt.Errorf("decode influencer metrics: %w", err)
	}
	return metrics, nil
}

// DecodePostMetrics decodes a normalized post metrics payload.
func DecodePostMetrics(payload json.RawMessage) (PostMetrics, error) {
	var metrics PostMetrics
	if err := json.Unmarshal(payload, &metrics); err != nil {
		return PostMetrics{}, fmt.Errorf("decode post metrics: %w", err)
	}
	return metrics, nil
}
