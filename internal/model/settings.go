package model

import "strings"

// DefaultRegion is the region assumed when none has been configured.
const DefaultRegion = "ap-guangzhou"

// CredentialConfigured is the presence marker exposed in place of a stored
// credential value.
const CredentialConfigured = "configured"

// COSConfig addresses and authenticates against the bucket. SecretID and
// SecretKey are encrypted at rest; Bucket and Region are stored as-is.
type COSConfig struct {
	SecretID  string `json:"secretId"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
}

// Complete reports whether every field needed to reach the bucket is set.
func (c COSConfig) Complete() bool {
	return c.SecretID != "" && c.SecretKey != "" && c.Bucket != "" && c.Region != ""
}

// Settings is the persisted configuration record.
type Settings struct {
	CustomDomain    string    `json:"customDomain"`
	UseCustomDomain bool      `json:"useCustomDomain"`
	Password        string    `json:"password"`  // bcrypt hash
	JWTSecret       string    `json:"jwtSecret"` // signing secret and key-derivation input
	COS             COSConfig `json:"cosConfig"`
	IsInitialized   bool      `json:"isInitialized"`
}

// DefaultSettings returns the record used before setup has run.
func DefaultSettings() *Settings {
	return &Settings{
		COS: COSConfig{Region: DefaultRegion},
	}
}

// SafeCOSConfig is COSConfig with the secret values replaced by presence markers.
type SafeCOSConfig struct {
	SecretID  string `json:"secretId"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
}

// SafeSettings is the only view of Settings handed to clients.
type SafeSettings struct {
	CustomDomain    string        `json:"customDomain"`
	UseCustomDomain bool          `json:"useCustomDomain"`
	COS             SafeCOSConfig `json:"cosConfig"`
}

// Safe strips the password hash and signing secret and masks credentials.
func (s *Settings) Safe() SafeSettings {
	region := s.COS.Region
	if region == "" {
		region = DefaultRegion
	}
	return SafeSettings{
		CustomDomain:    s.CustomDomain,
		UseCustomDomain: s.UseCustomDomain,
		COS: SafeCOSConfig{
			SecretID:  presence(s.COS.SecretID),
			SecretKey: presence(s.COS.SecretKey),
			Bucket:    s.COS.Bucket,
			Region:    region,
		},
	}
}

func presence(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return CredentialConfigured
}
