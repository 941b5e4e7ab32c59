package dto

import "time"

type HealthResponse struct {
	Status string `json:"status"`
}

type BanResponse struct {
	ChannelID string    `json:"channel_id"`
	ThreadID  string    `json:"thread_id"`
	UserID    string    `json:"user_id"`
	BannedBy  string    `json:"banned_by"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BansResponse struct {
	Bans []BanResponse `json:"bans"`
}

type GrantResponse struct {
	ThreadID  string    `json:"thread_id"`
	UserID    string    `json:"user_id"`
	GrantedBy string    `json:"granted_by"`
	CreatedAt time.Time `json:"created_at"`
}

type GrantsResponse struct {
	Grants []GrantResponse `json:"grants"`
}

type PostStatResponse struct {
	ThreadID     string    `json:"thread_id"`
	ForumID      string    `json:"forum_id"`
	MessageCount int64     `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

type StatsResponse struct {
	Posts []PostStatResponse `json:"posts"`
}

type FeaturedResponse struct {
	MessageThreshold int                    `json:"message_threshold"`
	RotationInterval string                 `json:"rotation_interval"`
	LastAdjustment   string                 `json:"last_adjustment"`
	Forums           []string               `json:"forums"`
	Tag              string                 `json:"tag"`
	Posts            []FeaturedPostResponse `json:"posts"`
}

type FeaturedPostResponse struct {
	ForumID   string    `json:"forum_id"`
	ThreadID  string    `json:"thread_id"`
	RotatedAt time.Time `json:"rotated_at"`
}

type ActionResponse struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	ChannelID  string            `json:"channel_id,omitempty"`
	ThreadID   string            `json:"thread_id,omitempty"`
	ThreadName string            `json:"thread_name,omitempty"`
	ActorID    string            `json:"actor_id"`
	TargetID   string            `json:"target_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Result     string            `json:"result,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

type ActionsResponse struct {
	Actions []ActionResponse `json:"actions"`
}
