package domain

import (
	"context"
)

// CategoryClassifier maps a free-text test name to a category
type CategoryClassifier interface {
	Classify(testName string) CategoryKey
}

// ReferenceEvaluator decides abnormality and the display reference of a lab result
type ReferenceEvaluator interface {
	Evaluate(result LabResult) Evaluation
}

// ViewAssembler turns a backend payload into ordered category views
type ViewAssembler interface {
	Assemble(payload AnalysisPayload) []CategoryView
}

// ViewCache stores assembled views keyed by payload fingerprint
type ViewCache interface {
	Get(ctx context.Context, key string) ([]CategoryView, bool, error)
	Set(ctx context.Context, key string, views []CategoryView) error
}

// AuditRepository defines persistence of analysis audit rows
type AuditRepository interface {
	Create(ctx context.Context, audit *AnalysisAudit) error
	GetByRequestID(ctx context.Context, requestID string) (*AnalysisAudit, error)
	ListRecent(ctx context.Context, limit int) ([]*AnalysisAudit, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
