package config

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike returns true if running in staging or production environment.
// Use this when you need to enforce production-like configuration requirements.
func (c *ServerConfig) IsProductionLike() bool {
	return c.Environment == EnvStaging || c.Environment == EnvProduction
}
