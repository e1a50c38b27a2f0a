package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dosco/docorm/core/internal/qcode"
	"github.com/go-playground/validator/v10"
)

// DefaultConnection is the name of the connection used when neither the
// schema nor the config names one.
const DefaultConnection = "default"

// Configuration for the docorm query builder
type Config struct {
	// Name of the connection used by schemas that do not set their own
	Connection string `mapstructure:"connection" json:"connection" yaml:"connection" jsonschema:"title=Connection,default=default"`

	// Database used by schemas that do not set their own. When empty the
	// connection's default database is used
	Database string `mapstructure:"database" json:"database" yaml:"database" jsonschema:"title=Database"`

	// Number of times a transaction is retried when the server labels the
	// failure as transient or the commit result as unknown
	TransactionRetries int `mapstructure:"transaction_retries" json:"transaction_retries" yaml:"transaction_retries" jsonschema:"title=Transaction Retries,default=0" validate:"gte=0,lte=100"`

	// Names of the timestamp and soft delete fields
	Fields FieldNames `mapstructure:"fields" json:"fields" yaml:"fields" jsonschema:"title=Field Names"`

	// Log every compiled pipeline
	Debug bool `mapstructure:"debug" json:"debug" yaml:"debug" jsonschema:"title=Debug,default=false"`
}

// FieldNames configures the document fields written by timestamps and
// soft deletes.
type FieldNames struct {
	CreatedAt string `mapstructure:"created_at" json:"created_at" yaml:"created_at" jsonschema:"title=Created At,default=createdAt" validate:"required,excludesall=.$"`
	UpdatedAt string `mapstructure:"updated_at" json:"updated_at" yaml:"updated_at" jsonschema:"title=Updated At,default=updatedAt" validate:"required,excludesall=.$"`
	IsDeleted string `mapstructure:"is_deleted" json:"is_deleted" yaml:"is_deleted" jsonschema:"title=Is Deleted,default=isDeleted" validate:"required,excludesall=.$"`
	DeletedAt string `mapstructure:"deleted_at" json:"deleted_at" yaml:"deleted_at" jsonschema:"title=Deleted At,default=deletedAt" validate:"required,excludesall=.$"`
}

func DefaultFieldNames() FieldNames {
	return FieldNames{
		CreatedAt: "createdAt",
		UpdatedAt: "updatedAt",
		IsDeleted: "isDeleted",
		DeletedAt: "deletedAt",
	}
}

var validate = validator.New()

// SetDefaults fills in every empty setting.
func (c *Config) SetDefaults() {
	if c.Connection == "" {
		c.Connection = DefaultConnection
	}
	def := DefaultFieldNames()
	if c.Fields.CreatedAt == "" {
		c.Fields.CreatedAt = def.CreatedAt
	}
	if c.Fields.UpdatedAt == "" {
		c.Fields.UpdatedAt = def.UpdatedAt
	}
	if c.Fields.IsDeleted == "" {
		c.Fields.IsDeleted = def.IsDeleted
	}
	if c.Fields.DeletedAt == "" {
		c.Fields.DeletedAt = def.DeletedAt
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s: failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
}

func (f FieldNames) qcode() qcode.FieldNames {
	return qcode.FieldNames{
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		IsDeleted: f.IsDeleted,
		DeletedAt: f.DeletedAt,
	}
}
