package models

// ProviderProfile describes how a TV provider's login form is shaped.
type ProviderProfile struct {
	ID            string `json:"id" yaml:"id"`
	DisplayName   string `json:"name" yaml:"name"`
	UsernameField string `json:"username_field,omitempty" yaml:"username_field,omitempty"`
	PasswordField string `json:"password_field,omitempty" yaml:"password_field,omitempty"`
	// LoginHostname, when set, is the only host credentials may be posted to.
	LoginHostname string `json:"login_hostname,omitempty" yaml:"login_hostname,omitempty"`
}

// UsernameKey returns the form field the username is submitted under.
func (p ProviderProfile) UsernameKey() string {
	if p.UsernameField == "" {
		return "username"
	}
	return p.UsernameField
}

// PasswordKey returns the form field the password is submitted under.
func (p ProviderProfile) PasswordKey() string {
	if p.PasswordField == "" {
		return "password"
	}
	return p.PasswordField
}
