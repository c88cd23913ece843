package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nutricomm/kebun-gizi/internal/config"
)

// ErrActivityNotAllowed is returned by CreateActivity when the caller is not
// the member who checked in today.
var ErrActivityNotAllowed = errors.New("only today's checked-in member can add activities")

// ActivityKinds are the garden tasks offered by default. Free text is allowed
// too.
var ActivityKinds = []string{
	"Menyiram tanaman",
	"Memberi pupuk",
	"Membersihkan gulma",
	"Memanen",
	"Menanam",
	"Menyiangi",
	"Menggemburkan tanah",
}

// Activity is one logged garden task.
type Activity struct {
	ID          string   `json:"_id"`
	UserID      string   `json:"user_id"`
	GardenID    string   `json:"kebun_id"`
	UserName    string   `json:"nama_user"`
	Kind        string   `json:"jenis_aktivitas"`
	Description string   `json:"deskripsi"`
	Date        string   `json:"tanggal"`
	Time        string   `json:"waktu"`
	Photos      []string `json:"foto,omitempty"`
}

type activityRequest struct {
	UserID      string `json:"user_id"`
	GardenID    string `json:"kebun_id"`
	UserName    string `json:"nama_user,omitempty"`
	Kind        string `json:"jenis_aktivitas"`
	Description string `json:"deskripsi"`
}

type activityResponse struct {
	Success  bool      `json:"success"`
	Activity *Activity `json:"aktivitas"`
	Error    string    `json:"error"`
}

type activityListResponse struct {
	Success    bool       `json:"success"`
	Activities []Activity `json:"aktivitas"`
	Error      string     `json:"error"`
}

// JoinKinds merges the selected kinds and an optional free-text one into the
// single comma-separated field the backend stores. Blank entries are dropped.
func JoinKinds(kinds []string, other string) string {
	parts := make([]string, 0, len(kinds)+1)
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			parts = append(parts, k)
		}
	}
	if other = strings.TrimSpace(other); other != "" {
		parts = append(parts, other)
	}
	return strings.Join(parts, ", ")
}

// CreateActivity logs a task for today. Only the member who checked in today
// may do so; anyone else gets ErrActivityNotAllowed without a POST.
func (c *Client) CreateActivity(ctx context.Context, userID, gardenID, userName, kind, description string) (Activity, error) {
	if strings.TrimSpace(kind) == "" {
		return Activity{}, errors.New("create activity: at least one activity kind is required")
	}
	st, err := c.AttendanceStatus(ctx, userID, gardenID)
	if err != nil {
		return Activity{}, err
	}
	if !st.HasCheckedIn {
		return Activity{}, fmt.Errorf("%w: nobody has checked in today", ErrActivityNotAllowed)
	}
	if !st.IsMine {
		return Activity{}, fmt.Errorf("%w: checked in by %s", ErrActivityNotAllowed, st.CheckedInBy())
	}

	var res activityResponse
	err = c.do(ctx, http.MethodPost, config.ActivityPath+"/", nil, activityRequest{
		UserID:      userID,
		GardenID:    gardenID,
		UserName:    userName,
		Kind:        kind,
		Description: description,
	}, &res)
	if err != nil {
		return Activity{}, fmt.Errorf("create activity: %w", err)
	}
	if !res.Success {
		return Activity{}, fmt.Errorf("create activity: %s", res.Error)
	}
	if res.Activity == nil {
		return Activity{}, nil
	}
	return *res.Activity, nil
}

// TodayActivities lists today's activities for a garden, newest first.
func (c *Client) TodayActivities(ctx context.Context, gardenID string) ([]Activity, error) {
	path := config.ActivityPath + "/kebun/" + url.PathEscape(gardenID) + "/today"

	var res activityListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &res); err != nil {
		return nil, fmt.Errorf("today activities: %w", err)
	}
	if !res.Success {
		return nil, fmt.Errorf("today activities: %s", res.Error)
	}
	if res.Activities == nil {
		return []Activity{}, nil
	}
	return res.Activities, nil
}
