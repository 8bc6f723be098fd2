package entity

// Status is the read-only service snapshot exposed on the HTTP API.
type Status struct {
	Env      string     `json:"env"`
	Uptime   string     `json:"uptime"`
	Users    int64      `json:"users"`
	Channels []*Channel `json:"channels"`
}
