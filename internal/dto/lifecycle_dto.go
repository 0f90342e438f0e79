package dto

type DeleteRequest struct {
	Reason string `json:"reason"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type SuspendRequest struct {
	Reason          string `json:"reason"`
	DeleteAfterDays *int   `json:"delete_after_days"`
}
