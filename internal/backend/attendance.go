package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nutricomm/kebun-gizi/internal/config"
)

// ErrAlreadyCheckedIn is returned by CheckIn when the garden already has a
// check-in for today. One check-in per garden per day.
var ErrAlreadyCheckedIn = errors.New("garden already checked in today")

// ErrNotCheckedIn is returned by CheckOut before anyone has checked in.
var ErrNotCheckedIn = errors.New("garden not checked in today")

// AttendanceRecord is one stored check-in.
type AttendanceRecord struct {
	ID        string `json:"id_absensi"`
	GardenID  string `json:"id_kebun"`
	UserID    string `json:"id_user"`
	Date      string `json:"tanggal"`
	CheckIn   string `json:"waktu_checkin"`
	CheckOut  string `json:"waktu_checkout"`
	Status    string `json:"status"`
	Note      string `json:"catatan"`
	UserName  string `json:"nama_user"`
	CreatedAt string `json:"created_at"`
}

// AttendanceStatus is today's attendance state for a garden.
type AttendanceStatus struct {
	Success       bool              `json:"success"`
	HasCheckedIn  bool              `json:"has_checked_in"`
	HasCheckedOut bool              `json:"has_checked_out"`
	Record        *AttendanceRecord `json:"absensi"`
	IsMine        bool              `json:"is_my_absensi"`
	OfficerName   string            `json:"petugas_nama"`
	Error         string            `json:"error"`
}

// CheckedInBy names whoever checked in, from the caller's point of view.
func (s AttendanceStatus) CheckedInBy() string {
	switch {
	case s.IsMine:
		return "you"
	case s.OfficerName != "":
		return s.OfficerName
	default:
		return "another garden member"
	}
}

type attendanceRequest struct {
	UserID   string `json:"user_id"`
	GardenID string `json:"kebun_id"`
	UserName string `json:"nama_user,omitempty"`
	Note     string `json:"catatan,omitempty"`
}

type attendanceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// AttendanceStatus returns today's attendance state for userID in gardenID.
func (c *Client) AttendanceStatus(ctx context.Context, userID, gardenID string) (AttendanceStatus, error) {
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("kebun_id", gardenID)

	var st AttendanceStatus
	if err := c.do(ctx, http.MethodGet, config.AttendancePath+"/status", params, nil, &st); err != nil {
		return AttendanceStatus{}, fmt.Errorf("attendance status: %w", err)
	}
	if !st.Success {
		return st, fmt.Errorf("attendance status: %s", st.Error)
	}
	return st, nil
}

// CheckIn records today's check-in. It consults the status first so a second
// member gets ErrAlreadyCheckedIn instead of a backend error.
func (c *Client) CheckIn(ctx context.Context, userID, gardenID, userName, note string) error {
	st, err := c.AttendanceStatus(ctx, userID, gardenID)
	if err != nil {
		return err
	}
	if st.HasCheckedIn {
		return fmt.Errorf("%w by %s", ErrAlreadyCheckedIn, st.CheckedInBy())
	}
	return c.postAttendance(ctx, "/checkin", attendanceRequest{
		UserID:   userID,
		GardenID: gardenID,
		UserName: userName,
		Note:     note,
	})
}

// CheckOut records today's check-out.
func (c *Client) CheckOut(ctx context.Context, userID, gardenID string) error {
	st, err := c.AttendanceStatus(ctx, userID, gardenID)
	if err != nil {
		return err
	}
	if !st.HasCheckedIn {
		return ErrNotCheckedIn
	}
	if st.HasCheckedOut {
		return fmt.Errorf("check-out: garden already checked out today")
	}
	return c.postAttendance(ctx, "/checkout", attendanceRequest{UserID: userID, GardenID: gardenID})
}

func (c *Client) postAttendance(ctx context.Context, suffix string, body attendanceRequest) error {
	var res attendanceResponse
	if err := c.do(ctx, http.MethodPost, config.AttendancePath+suffix, nil, body, &res); err != nil {
		return fmt.Errorf("attendance %s: %w", suffix, err)
	}
	if !res.Success {
		return fmt.Errorf("attendance %s: %s", suffix, res.Error)
	}
	return nil
}
