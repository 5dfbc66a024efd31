package authapi

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type idResponse struct {
	ID string `json:"id"`
}

type profileResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}
