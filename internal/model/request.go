package model

// Request and response shapes for the account API.
//
// The `validate` tags are read by internal/validation (go-playground/validator).
// Bounds follow the users table: VARCHAR(100) columns, and passwords are capped
// at 72 bytes because bcrypt silently ignores anything past that.

type RegisterUserRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=72"`
	Name     string `json:"name"     validate:"required,max=100"`
}

type LoginUserRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=72"`
}

// UpdateUserRequest uses pointers so a field that was not sent (nil) is never
// confused with one that was sent empty. Username comes from the auth context,
// not from the body.
type UpdateUserRequest struct {
	Username string  `json:"-"        validate:"required,max=100"`
	Name     *string `json:"name"     validate:"omitnil,min=1,max=100"`
	Password *string `json:"password" validate:"omitnil,min=1,max=72"`
}

// UserResponse is the public view of a user. Password and token never appear.
type UserResponse struct {
	ID       string `json:"-"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// ToResponse builds the public view of u.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
	}
}

// CurrentUserRequest identifies the caller for get and logout. Username is
// taken from the auth context, never from the body.
type CurrentUserRequest struct {
	Username string `json:"-" validate:"required,max=100"`
}
