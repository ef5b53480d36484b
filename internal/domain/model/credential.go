package model

import "time"

// DefaultRootURI is the ArcGIS Online sharing REST root.
const DefaultRootURI = "https://www.arcgis.com/sharing/rest"

// Credential identifies a portal account and the sharing REST root it
// authenticates against. Values are fixed once the credential is built.
type Credential struct {
	Username string
	Password string
	Referer  string
	RootURI  string
}

// HasLogin returns true when both Username and Password are non-empty.
func (c Credential) HasLogin() bool {
	return c.Username != "" && c.Password != ""
}

// StoredCredential holds a persisted credential key-value pair. Service identifies
// the external system ("arcgis", "wsdot"), and Key identifies the credential
// type within that service ("username", "password").
type StoredCredential struct {
	ID        int64
	Service   string
	Key       string
	Value     string
	UpdatedAt time.Time
}
