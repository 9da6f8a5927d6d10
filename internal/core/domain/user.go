package domain

import "encoding/json"

// AdminRole is the only role the console logs in with.
const AdminRole = "admin"

// User is the staff profile returned by the backend. It is replaced wholesale
// on every login or profile fetch and never patched in place.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Role  string `json:"role"`

	// Extra keeps fields the console does not model explicitly.
	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON accepts numeric or string ids and preserves unknown fields.
func (u *User) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*u = User{}
	for key, value := range raw {
		switch key {
		case "id":
			var s string
			if err := json.Unmarshal(value, &s); err == nil {
				u.ID = s
				continue
			}
			var n json.Number
			if err := json.Unmarshal(value, &n); err != nil {
				return err
			}
			u.ID = n.String()
		case "name":
			_ = json.Unmarshal(value, &u.Name)
		case "phone":
			_ = json.Unmarshal(value, &u.Phone)
		case "role":
			_ = json.Unmarshal(value, &u.Role)
		default:
			if u.Extra == nil {
				u.Extra = make(map[string]json.RawMessage)
			}
			u.Extra[key] = value
		}
	}
	return nil
}

// MarshalJSON writes the modeled fields followed by the preserved extras.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Extra)+4)
	for k, v := range u.Extra {
		out[k] = v
	}
	out["id"] = u.ID
	out["name"] = u.Name
	out["phone"] = u.Phone
	out["role"] = u.Role
	return json.Marshal(out)
}

// LoginRequest is the console login form.
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest asks the backend to start a password reset.
type ForgotPasswordRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// LoginResult is what the session provider hands back to the UI layer.
// It never carries an error: failures are folded into Success/Message.
type LoginResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
}
